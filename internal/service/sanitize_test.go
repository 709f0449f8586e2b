package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Alpha  ", "Alpha"},
		{"\t\n", ""},
		{strings.Repeat("ß", MaxNameLength+5), strings.Repeat("ß", MaxNameLength)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in))
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, validateID("id", "alpha"))
	assert.NoError(t, validateID("id", strings.Repeat("a", MaxIDLength)))

	for _, id := range []string{"", "   ", strings.Repeat("a", MaxIDLength+1), "bad\xff"} {
		err := validateID("id", id)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "id %q", id)
	}
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, KindOf(nil))
	assert.Equal(t, ErrInvalidArgument, KindOf(invalidf("bad %s", "thing")))
	assert.Equal(t, ErrNotFound, KindOf(fmt.Errorf("lookup: %w", notFoundf("x"))))
	assert.Equal(t, ErrInternal, KindOf(errors.New("boom")))

	err := invalidf("name %q too long", "bob")
	assert.Equal(t, `invalid argument: name "bob" too long`, err.Error())
}
