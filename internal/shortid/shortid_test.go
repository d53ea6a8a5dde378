package shortid

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("length and alphabet", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			id, err := Generate()
			require.NoError(t, err)

			assert.Len(t, id, Length)
			for _, r := range id {
				assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected symbol %q in %q", r, id)
			}
		}
	})

	t.Run("uniqueness", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)

		for i := 0; i < 1000; i++ {
			id, err := Generate()
			require.NoError(t, err)
			seen[id] = struct{}{}
		}

		assert.GreaterOrEqual(t, len(seen), 990)
	})
}

func stubRandom(t *testing.T, ids ...string) {
	t.Helper()

	orig := random
	t.Cleanup(func() {
		random = orig
	})

	random = func() (string, error) {
		if len(ids) == 0 {
			return "", errors.New("no ids left")
		}
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
}

func TestGenerate_SkipsReservedWords(t *testing.T) {
	stubRandom(t, "metrics", "swagger", "shorten", "abc1234")

	id, err := Generate()

	require.NoError(t, err)
	assert.Equal(t, "abc1234", id)
}

func TestGenerate_Error(t *testing.T) {
	stubRandom(t)

	id, err := Generate()

	assert.Error(t, err)
	assert.Empty(t, id)
}

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 62)

	seen := make(map[rune]struct{})
	for _, r := range Alphabet {
		seen[r] = struct{}{}
	}
	assert.Len(t, seen, 62)
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "generated shape", id: "aZ09xYq", want: true},
		{name: "too short", id: "abc123", want: false},
		{name: "too long", id: "abcd12345", want: false},
		{name: "empty", id: "", want: false},
		{name: "symbol outside alphabet", id: "abc-123", want: false},
		{name: "non ascii", id: "abcdeé1", want: false},
		{name: "metrics route", id: "metrics", want: false},
		{name: "shorten route", id: "shorten", want: false},
		{name: "swagger route", id: "swagger", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.id))
		})
	}
}

func TestGenerator_NewID(t *testing.T) {
	id, err := Generator{}.NewID()

	require.NoError(t, err)
	assert.True(t, Valid(id))
}
