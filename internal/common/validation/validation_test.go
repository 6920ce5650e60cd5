package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(20))
	assert.NoError(t, ValidateAmount(0.01))
	assert.NoError(t, ValidateAmount(19.99))
	assert.NoError(t, ValidateAmount(MaxDepositAmount))

	assert.Error(t, ValidateAmount(0))
	assert.Error(t, ValidateAmount(-5))
	assert.Error(t, ValidateAmount(MaxDepositAmount+0.01))
	assert.Error(t, ValidateAmount(1.999))
}

func TestValidateQuantity(t *testing.T) {
	assert.NoError(t, ValidateQuantity(1))
	assert.NoError(t, ValidateQuantity(MaxPurchaseQuantity))

	assert.Error(t, ValidateQuantity(0))
	assert.Error(t, ValidateQuantity(-1))
	assert.Error(t, ValidateQuantity(MaxPurchaseQuantity+1))
}

func TestValidateGBAmount(t *testing.T) {
	options := []int64{1, 2, 5, 10, 50, 100}

	assert.NoError(t, ValidateGBAmount(5, options))
	assert.NoError(t, ValidateGBAmount(100, options))

	assert.Error(t, ValidateGBAmount(3, options))
	assert.Error(t, ValidateGBAmount(0, options))
	assert.Error(t, ValidateGBAmount(-5, options))
	assert.Error(t, ValidateGBAmount(5, nil))
}
