package idgen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDIncreasing(t *testing.T) {
	Init(1)

	prev := NextID()
	for i := 0; i < 10000; i++ {
		id := NextID()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateEventNo(t *testing.T) {
	no := GenerateEventNo()
	assert.Regexp(t, regexp.MustCompile(`^EVT\d{14}\d{8}$`), no)
	assert.NotEqual(t, no, GenerateEventNo())
}

func TestSettlementHash(t *testing.T) {
	hash := SettlementHash()
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{64}$`), hash)
	assert.NotEqual(t, hash, SettlementHash())
}

func TestReferralCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := ReferralCode()
		require.Len(t, code, 8)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(referralAlphabet, c), "unexpected char %q", c)
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}
