// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(types.LedgerConfig{Path: filepath.Join(t.TempDir(), "nested", "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(types.LedgerConfig{})
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(types.LedgerConfig{Path: path})
	require.NoError(t, err)
	_, err = l.Record(context.Background(), types.Exchange{Kind: types.ExchangeChat, Success: true})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(types.LedgerConfig{Path: path})
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecordAndRecent(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id1, err := l.Record(ctx, types.Exchange{
		Kind:           types.ExchangeChat,
		ConversationID: "conv_a",
		Profile:        "pediatria",
		Model:          "gpt-4",
		TokensUsed:     200,
		Success:        true,
		PMIDs:          []string{"10", "20"},
		CreatedAt:      stamp,
	})
	require.NoError(t, err)

	l.now = func() time.Time { return stamp.Add(time.Minute) }
	id2, err := l.Record(ctx, types.Exchange{
		Kind:           types.ExchangeChat,
		ConversationID: "conv_a",
		Success:        false,
		Error:          "HTTP 502",
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	got, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, id2, got[0].ID)
	assert.False(t, got[0].Success)
	assert.Equal(t, "HTTP 502", got[0].Error)
	assert.Nil(t, got[0].PMIDs)
	assert.True(t, got[0].CreatedAt.Equal(stamp.Add(time.Minute)))

	assert.Equal(t, types.Exchange{
		ID:             id1,
		Kind:           types.ExchangeChat,
		ConversationID: "conv_a",
		Profile:        "pediatria",
		Model:          "gpt-4",
		TokensUsed:     200,
		Success:        true,
		PMIDs:          []string{"10", "20"},
		CreatedAt:      stamp,
	}, got[1])
}

func TestRecentLimit(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	for range 30 {
		_, err := l.Record(ctx, types.Exchange{Kind: types.ExchangeChat, Success: true})
		require.NoError(t, err)
	}

	got, err := l.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = l.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultRecentLimit)
}

func TestUsage(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	for _, ex := range []types.Exchange{
		{Kind: types.ExchangeChat, Model: "gpt-4", TokensUsed: 100, Success: true},
		{Kind: types.ExchangeChat, Model: "gpt-4", TokensUsed: 50, Success: true},
		{Kind: types.ExchangeConsultation, Model: "gemini-2.5-flash", TokensUsed: 400, Success: true},
		{Kind: types.ExchangeChat, Success: false, Error: "timeout"},
	} {
		_, err := l.Record(ctx, ex)
		require.NoError(t, err)
	}

	got, err := l.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.ModelUsage{
		{Model: "gemini-2.5-flash", Exchanges: 1, Failures: 0, TokensUsed: 400},
		{Model: "gpt-4", Exchanges: 2, Failures: 0, TokensUsed: 150},
		{Model: "unknown", Exchanges: 1, Failures: 1, TokensUsed: 0},
	}, got)
}

func TestUsageEmpty(t *testing.T) {
	got, err := testLedger(t).Usage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteYAML(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	_, err := l.Record(ctx, types.Exchange{Kind: types.ExchangeConsultation, Model: "gpt-4", Success: true, TokensUsed: 9})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, l.WriteYAML(ctx, &buf, 10))

	var got []types.Exchange
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, types.ExchangeConsultation, got[0].Kind)
	assert.Equal(t, 9, got[0].TokensUsed)
}
