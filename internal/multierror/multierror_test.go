package multierror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiError_Error(t *testing.T) {
	m := New[string]()
	m.Add("1", errors.New("error1"))
	assert.Equal(t, "1:error1", m.Error())
	assert.Equal(t, 1, m.Len())
}

func TestMultiError_Combined(t *testing.T) {
	m := New[string]()
	assert.Nil(t, m.Combined())
	m.Add("1", errors.New("error"))
	assert.NotNil(t, m.Combined())
}
