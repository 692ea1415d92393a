// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/coffer/types"
)

func TestStructuredErrorsUnwrapToKind(t *testing.T) {
	testDefs := []struct {
		err  error
		kind error
	}{
		{types.NewUnauthorizedError("agent", "mallory"), types.ErrUnauthorized},
		{
			types.NewLifecycleError(types.LifecycleActive, types.LifecycleDissolved),
			types.ErrInvalidLifecycleState,
		},
		{types.NewPerTxLimitError(11, 10), types.ErrPerTxLimitExceeded},
		{types.NewDailyLimitError(11, 5), types.ErrDailyLimitExceeded},
		{types.NewRecipientNotWhitelistedError("bob"), types.ErrRecipientNotWhitelisted},
		{types.NewSenderNotWhitelistedError("bob"), types.ErrSenderNotWhitelisted},
		{types.NewInsufficientBalanceError(10, 3), types.ErrInsufficientBalance},
		{types.NewQuorumError(40, 51), types.ErrQuorumNotReached},
	}
	for _, testDef := range testDefs {
		wrapped := fmt.Errorf("operation failed: %w", testDef.err)
		assert.ErrorIs(t, wrapped, testDef.kind, testDef.err.Error())
	}
}

func TestStructuredErrorContext(t *testing.T) {
	err := fmt.Errorf("agent transfer: %w", types.NewDailyLimitError(30, 20))
	var limitErr types.DailyLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, uint64(30), limitErr.Attempted)
	assert.Equal(t, uint64(20), limitErr.Remaining)
	assert.False(t, errors.Is(err, types.ErrPerTxLimitExceeded))
}

func TestMulDiv(t *testing.T) {
	assert.Equal(t, uint64(100), types.MulDiv(200, 5_000, 10_000))
	assert.Equal(t, uint64(33), types.MulDiv(100, 1, 3))
	// Intermediate product overflows uint64
	assert.Equal(
		t,
		uint64(math.MaxUint64/2),
		types.MulDiv(math.MaxUint64, 5_000, 10_000),
	)
	assert.Panics(t, func() { types.MulDiv(1, 1, 0) })
	assert.Equal(t, uint64(51), types.MulDivCeil(100, 5_100, 10_000))
	assert.Equal(t, uint64(52), types.MulDivCeil(101, 5_100, 10_000))
}

func TestLifecycleString(t *testing.T) {
	text, err := types.LifecycleDissolving.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "dissolving", string(text))
	assert.Equal(t, "governor", types.RoleGovernor.String())
}
