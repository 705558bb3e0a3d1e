package tripdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/hupe1980/tripdb/internal/diskindex"
	"github.com/hupe1980/tripdb/internal/recordstore"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		kind ErrorKind
	}{
		{"missing file", fmt.Errorf("open: %w", os.ErrNotExist), ErrNotFound, KindNotFound},
		{"corrupt table", diskindex.ErrCorrupt, ErrCorrupt, KindCorrupt},
		{"corrupt frame", fmt.Errorf("read: %w", recordstore.ErrCorrupt), ErrCorrupt, KindCorrupt},
		{"other", errors.New("disk on fire"), ErrIO, KindIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError("op", "/path", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)

			var e *Error
			assert.True(t, errors.As(err, &e))
			assert.Equal(t, tt.kind, e.Kind)
			assert.Contains(t, err.Error(), "op /path")
		})
	}

	assert.NoError(t, translateError("op", "", nil))
	assert.Equal(t, context.Canceled, translateError("op", "", context.Canceled))
	assert.ErrorIs(t, translateError("op", "", diskindex.ErrClosed), ErrClosed)

	inner := &Error{Kind: KindCorrupt, Op: "inner"}
	assert.Same(t, inner, translateError("outer", "", inner))
	assert.NotErrorIs(t, inner, ErrNotFound)
}

func TestPagination(t *testing.T) {
	assert.Equal(t, 3, Pages(105, 50))
	assert.Equal(t, 2, Pages(100, 50))
	assert.Equal(t, 0, Pages(0, 50))
	assert.Equal(t, 0, Pages(10, 0))

	assert.Equal(t, Pagination{Page: 1, PerPage: 50}, DefaultPagination())
	assert.Equal(t, Pagination{Page: 1, PerPage: 50}, Pagination{Page: 0, PerPage: -1}.normalize())
	assert.Equal(t, Pagination{Page: 2, PerPage: 0}, Pagination{Page: 2, PerPage: 0}.normalize())

	res := newPagedResult(nil, 105, Pagination{Page: 3, PerPage: 50}, 0)
	assert.Equal(t, 3, res.Pages)
	assert.NotNil(t, res.Items)
}
