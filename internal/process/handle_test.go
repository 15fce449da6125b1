package process

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleURL(t *testing.T) {
	t.Parallel()

	h := &Handle{Host: "127.0.0.1", Port: 9515}
	require.Equal(t, "ws://127.0.0.1:9515/", h.URL())
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	t.Parallel()

	buf := newTailBuffer(3)
	require.Empty(t, buf.String())

	for i := 1; i <= 5; i++ {
		buf.Append(fmt.Sprintf("line %d", i))
	}
	require.Equal(t, "line 3\nline 4\nline 5", buf.String())
}
