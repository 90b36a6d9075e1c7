package sale

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketCode_Format(t *testing.T) {
	code, err := newTicketCode()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(code, "TKT-"), "code %q missing prefix", code)
	require.Len(t, code, len(codePrefix)+codeLength)

	for _, r := range code[len(codePrefix):] {
		assert.Contains(t, codeAlphabet, string(r))
	}
}

func TestNewTicketCode_UniqueUnderConcurrency(t *testing.T) {
	const (
		workers        = 100
		codesPerWorker = 100
	)

	var (
		mu    sync.Mutex
		codes = make(map[string]struct{}, workers*codesPerWorker)
		wg    sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			generated := make([]string, 0, codesPerWorker)
			for j := 0; j < codesPerWorker; j++ {
				code, err := newTicketCode()
				assert.NoError(t, err)
				generated = append(generated, code)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, code := range generated {
				codes[code] = struct{}{}
			}
		}()
	}
	wg.Wait()

	require.Len(t, codes, workers*codesPerWorker, "generated codes collided")
}
