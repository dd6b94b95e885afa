// SPDX-License-Identifier: ice License 1.0

package log

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(stderr{})
	require.NoError(t, SetLevel(WarnLevel))
	defer func() { require.NoError(t, SetLevel(InfoLevel)) }()

	Info("hidden")
	Warn("shown", String("k", "v"))
	Error(errors.New("boom"), Int("status", 400))
	Error(nil)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "boom")
	require.Contains(t, buf.String(), "400")

	require.Error(t, SetLevel("verbose"))
}
