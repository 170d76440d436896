package xerrors

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()
	c.Add(nil)
	require.NoError(t, c.ErrorOrNil())

	c.Add(errors.New("first"))
	c.Addf("second %d", 2)

	err := c.ErrorOrNil()
	require.Error(t, err)
	assert.Equal(t, "first; second 2", err.Error())

	var merr MultiError
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr, 2)
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Addf("err %d", i)
		}(i)
	}
	wg.Wait()

	merr, ok := c.ErrorOrNil().(MultiError)
	require.True(t, ok)
	assert.Len(t, merr, 50)
}
