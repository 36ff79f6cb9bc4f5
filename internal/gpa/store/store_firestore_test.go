package store

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreDocID(t *testing.T) {
	t.Run("ids are legal document names", func(t *testing.T) {
		for _, reg := range []string{"21A91A0501", "a/b", ".", "..", "__x__", "ñ 1"} {
			id := FirestoreDocID(reg)
			assert.NotContains(t, id, "/")
			assert.NotEqual(t, ".", id)
			assert.NotEqual(t, "..", id)
			assert.False(t, strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"), id)
		}
	})

	t.Run("ids round trip to the registration number", func(t *testing.T) {
		decoded, err := base64.RawURLEncoding.DecodeString(FirestoreDocID("a/b"))
		require.NoError(t, err)
		assert.Equal(t, "a/b", string(decoded))
	})

	t.Run("distinct keys never share an id", func(t *testing.T) {
		assert.NotEqual(t, FirestoreDocID("a/b"), FirestoreDocID("a-b"))
	})
}
