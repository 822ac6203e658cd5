package splitlog_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/engine/splitlog"
)

func TestWriter_RoutesToClaimedSide(t *testing.T) {
	var main, a, b bytes.Buffer
	w := splitlog.New(&main)

	_, _ = w.Write([]byte("banner\n"))
	require.NoError(t, w.Claim(&a))
	_, _ = w.Write([]byte("a1\n"))
	w.Release(&a)

	_, _ = w.Write([]byte("between\n"))
	require.NoError(t, w.Claim(&b))
	_, _ = w.Write([]byte("b1\n"))
	w.Release(&b)

	assert.Equal(t, "banner\na1\nbetween\nb1\n", main.String())
	assert.Equal(t, "banner\na1\n", a.String())
	assert.Equal(t, "between\nb1\n", b.String())
}

func TestWriter_ReleaseOfStaleSideIsIgnored(t *testing.T) {
	var main, a, b bytes.Buffer
	w := splitlog.New(&main)

	require.NoError(t, w.Claim(&a))
	require.NoError(t, w.Claim(&b))
	w.Release(&a)
	_, _ = w.Write([]byte("x"))

	assert.Empty(t, a.String())
	assert.Equal(t, "x", b.String())
}

func TestWriter_FlushToAppendsTrailingOutput(t *testing.T) {
	var main, last bytes.Buffer
	w := splitlog.New(&main)

	require.NoError(t, w.Claim(&last))
	_, _ = w.Write([]byte("body\n"))
	w.Release(&last)
	_, _ = w.Write([]byte("summary\n"))

	require.NoError(t, w.FlushTo(&last))
	assert.Equal(t, "body\nsummary\n", last.String())

	_, _ = w.Write([]byte("after\n"))
	assert.Equal(t, "body\nsummary\n", last.String())
}

func TestWriter_ConcurrentWrites(t *testing.T) {
	var main bytes.Buffer
	w := splitlog.New(&main)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(w, "line %d\n", i)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, bytes.Count(main.Bytes(), []byte("\n")))
}
