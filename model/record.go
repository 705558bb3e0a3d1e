package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field identifies one of the fixed record columns, in source order.
type Field int

const (
	FieldVendorID Field = iota
	FieldPickupDatetime
	FieldDropoffDatetime
	FieldPassengerCount
	FieldTripDistance
	FieldRatecodeID
	FieldStoreAndFwdFlag
	FieldPULocationID
	FieldDOLocationID
	FieldPaymentType
	FieldFareAmount
	FieldExtra
	FieldMTATax
	FieldTipAmount
	FieldTollsAmount
	FieldImprovementSurcharge
	FieldTotalAmount
	FieldCongestionSurcharge
	FieldIndex

	// NumFields is the number of columns a well-formed row carries.
	NumFields = int(FieldIndex) + 1
)

var fieldNames = [NumFields]string{
	"vendor_id",
	"tpep_pickup_datetime",
	"tpep_dropoff_datetime",
	"passenger_count",
	"trip_distance",
	"ratecode_id",
	"store_and_fwd_flag",
	"pu_location_id",
	"do_location_id",
	"payment_type",
	"fare_amount",
	"extra",
	"mta_tax",
	"tip_amount",
	"tolls_amount",
	"improvement_surcharge",
	"total_amount",
	"congestion_surcharge",
	"index",
}

// ErrShortRow is returned when a row has fewer than NumFields columns.
var ErrShortRow = errors.New("row has too few fields")

// String returns the canonical column name.
func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Valid reports whether f names a record column.
func (f Field) Valid() bool {
	return f >= 0 && int(f) < NumFields
}

// ParseField resolves a column name (case-insensitive) to its Field.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if strings.EqualFold(n, name) {
			return Field(i), true
		}
	}
	return 0, false
}

// Header returns the canonical column names in output order.
func Header() []string {
	h := make([]string, NumFields)
	copy(h, fieldNames[:])
	return h
}

// Record is one ride transaction. All columns are stored as text exactly as
// they appeared in the source row.
type Record struct {
	VendorID             string `json:"vendor_id"`
	PickupDatetime       string `json:"tpep_pickup_datetime"`
	DropoffDatetime      string `json:"tpep_dropoff_datetime"`
	PassengerCount       string `json:"passenger_count"`
	TripDistance         string `json:"trip_distance"`
	RatecodeID           string `json:"ratecode_id"`
	StoreAndFwdFlag      string `json:"store_and_fwd_flag"`
	PULocationID         string `json:"pu_location_id"`
	DOLocationID         string `json:"do_location_id"`
	PaymentType          string `json:"payment_type"`
	FareAmount           string `json:"fare_amount"`
	Extra                string `json:"extra"`
	MTATax               string `json:"mta_tax"`
	TipAmount            string `json:"tip_amount"`
	TollsAmount          string `json:"tolls_amount"`
	ImprovementSurcharge string `json:"improvement_surcharge"`
	TotalAmount          string `json:"total_amount"`
	CongestionSurcharge  string `json:"congestion_surcharge"`
	Index                string `json:"index"`
}

// FromRow builds a Record from the first NumFields columns of row.
// Extra trailing columns are ignored.
func FromRow(row []string) (Record, error) {
	if len(row) < NumFields {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrShortRow, len(row), NumFields)
	}
	var r Record
	for i := 0; i < NumFields; i++ {
		*r.ptr(Field(i)) = row[i]
	}
	return r, nil
}

// Key returns the unique record key.
func (r *Record) Key() string {
	return r.Index
}

// Get returns the text of column f, or "" for an invalid field.
func (r *Record) Get(f Field) string {
	if !f.Valid() {
		return ""
	}
	return *r.ptr(f)
}

// Float parses column f as a float64. Unparsable text, including text with
// surrounding whitespace, yields 0.
func (r *Record) Float(f Field) float64 {
	v, err := strconv.ParseFloat(r.Get(f), 64)
	if err != nil {
		return 0
	}
	return v
}

// Int parses column f as an integer. Unparsable text yields 0.
func (r *Record) Int(f Field) int64 {
	v, err := strconv.ParseInt(r.Get(f), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Row returns the columns in canonical order.
func (r *Record) Row() []string {
	return r.AppendRow(make([]string, 0, NumFields))
}

// AppendRow appends the columns in canonical order to dst.
func (r *Record) AppendRow(dst []string) []string {
	for i := 0; i < NumFields; i++ {
		dst = append(dst, *r.ptr(Field(i)))
	}
	return dst
}

func (r *Record) ptr(f Field) *string {
	switch f {
	case FieldVendorID:
		return &r.VendorID
	case FieldPickupDatetime:
		return &r.PickupDatetime
	case FieldDropoffDatetime:
		return &r.DropoffDatetime
	case FieldPassengerCount:
		return &r.PassengerCount
	case FieldTripDistance:
		return &r.TripDistance
	case FieldRatecodeID:
		return &r.RatecodeID
	case FieldStoreAndFwdFlag:
		return &r.StoreAndFwdFlag
	case FieldPULocationID:
		return &r.PULocationID
	case FieldDOLocationID:
		return &r.DOLocationID
	case FieldPaymentType:
		return &r.PaymentType
	case FieldFareAmount:
		return &r.FareAmount
	case FieldExtra:
		return &r.Extra
	case FieldMTATax:
		return &r.MTATax
	case FieldTipAmount:
		return &r.TipAmount
	case FieldTollsAmount:
		return &r.TollsAmount
	case FieldImprovementSurcharge:
		return &r.ImprovementSurcharge
	case FieldTotalAmount:
		return &r.TotalAmount
	case FieldCongestionSurcharge:
		return &r.CongestionSurcharge
	default:
		return &r.Index
	}
}
