package semidx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semidx/semidx/embedding"
	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/store"
)

func TestTranslateError(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, translateError(nil))
	})

	t.Run("EmptyContent", func(t *testing.T) {
		err := translateError(embedding.ErrEmptyContent)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.ErrorIs(t, err, embedding.ErrEmptyContent)
	})

	t.Run("StoreNotFound", func(t *testing.T) {
		err := translateError(&store.NotFoundError{ID: "abc"})
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
		assert.EqualValues(t, "abc", nf.ID)
	})

	t.Run("IndexEntryNotFound", func(t *testing.T) {
		err := translateError(&index.ErrEntryNotFound{ID: "abc"})
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("Conflict", func(t *testing.T) {
		err := translateError(&store.ConflictError{Fingerprint: "fp", ModelVersion: "m"})
		var inc *IndexInconsistencyError
		assert.ErrorAs(t, err, &inc)
		assert.Contains(t, inc.Error(), "fp")
	})

	t.Run("InvalidK", func(t *testing.T) {
		assert.ErrorIs(t, translateError(index.ErrInvalidK), ErrInvalidK)
	})

	t.Run("Passthrough", func(t *testing.T) {
		sentinel := errors.New("backend exploded")
		assert.Same(t, sentinel, translateError(sentinel))
	})
}
