package tutorial

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	paid := &Tutorial{Price: decimal.NewFromInt(500)}
	free := &Tutorial{Price: decimal.NewFromInt(500), FreeAccess: true}

	assert.True(t, decimal.NewFromInt(500).Equal(paid.EffectivePrice()))
	assert.True(t, free.EffectivePrice().IsZero())
}
