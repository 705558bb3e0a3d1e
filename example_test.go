package tripdb_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/tripdb"
	"github.com/hupe1980/tripdb/blobstore"
	"github.com/hupe1980/tripdb/filter"
)

const exampleCSV = `vendor_id,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,ratecode_id,store_and_fwd_flag,pu_location_id,do_location_id,payment_type,fare_amount,extra,mta_tax,tip_amount,tolls_amount,improvement_surcharge,total_amount,congestion_surcharge,index
1,2020-01-01 00:28:15,2020-01-01 00:33:03,1,1.20,1,N,238,239,1,6,3,0.5,1.47,0,0.3,11.27,2.5,0
1,2020-01-01 00:35:39,2020-01-01 00:43:04,1,1.20,1,N,239,238,1,7,3,0.5,1.5,0,0.3,12.3,2.5,1
1,2020-01-01 00:47:41,2020-01-01 00:53:52,1,.60,1,N,238,238,1,6,3,0.5,1,0,0.3,10.8,2.5,2
`

func newExampleDB() (*tripdb.DB, func()) {
	dir, err := os.MkdirTemp("", "tripdb-example")
	if err != nil {
		log.Fatal(err)
	}
	store := blobstore.NewMemoryStore()
	store.Set("trips.csv", []byte(exampleCSV))

	db, err := tripdb.Open(context.Background(), store, "trips.csv", tripdb.WithDir(dir))
	if err != nil {
		log.Fatal(err)
	}
	return db, func() {
		_ = db.Close()
		_ = os.RemoveAll(dir)
	}
}

// ExampleDB_Get looks up a record by key.
func ExampleDB_Get() {
	db, cleanup := newExampleDB()
	defer cleanup()

	rec, err := db.Get(context.Background(), "1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(rec.DOLocationID, rec.TotalAmount)
	// Output: 238 12.3
}

// ExampleDB_Filter pages through records with a combined filter.
func ExampleDB_Filter() {
	db, cleanup := newExampleDB()
	defer cleanup()

	f := filter.AndOf(
		filter.Destination("238"),
		filter.Price(filter.Float(11), nil),
	)
	page, err := db.Filter(context.Background(), f, tripdb.DefaultPagination())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(page.Total, page.Pages, page.Items[0].Index)
	// Output: 1 1 1
}

// ExampleDB_PopularDestinations counts drop-off locations.
func ExampleDB_PopularDestinations() {
	db, cleanup := newExampleDB()
	defer cleanup()

	top, err := db.PopularDestinations(context.Background(), 2)
	if err != nil {
		log.Fatal(err)
	}
	for _, b := range top {
		fmt.Println(b.Value, b.Count)
	}
	// Output:
	// 238 2
	// 239 1
}

// ExampleDB_Stats aggregates a filtered subset.
func ExampleDB_Stats() {
	db, cleanup := newExampleDB()
	defer cleanup()

	stats, err := db.Stats(context.Background(), filter.Destination("238"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%.0f %.2f\n", stats["count"], stats["avg_amount"])
	// Output: 2 11.55
}
