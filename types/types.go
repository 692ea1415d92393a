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

// Package types holds the primitives shared by every treasury component:
// account addresses, roles, the lifecycle enum and the error catalogue.
package types

import (
	"fmt"
	"math/bits"
)

// BasisPoints is the denominator for all basis-point fractions
const BasisPoints = 10_000

// Address identifies an account on the value-transfer rail
type Address string

// ZeroAddress is the unset address
const ZeroAddress Address = ""

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return string(a)
}

// Role names one of the privileged role slots
type Role uint8

const (
	RoleAgent Role = iota + 1
	RoleCeo
	RoleGovernor
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleCeo:
		return "ceo"
	case RoleGovernor:
		return "governor"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Lifecycle is the treasury lifecycle state. It only ever moves forward.
type Lifecycle uint8

const (
	LifecycleActive Lifecycle = iota
	LifecycleDissolving
	LifecycleDissolved
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "active"
	case LifecycleDissolving:
		return "dissolving"
	case LifecycleDissolved:
		return "dissolved"
	default:
		return fmt.Sprintf("lifecycle(%d)", uint8(l))
	}
}

func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// MulDiv returns floor(a*b/c) without intermediate overflow. The result must
// fit in a uint64, which holds whenever b <= c.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		panic("types: MulDiv by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		panic("types: MulDiv overflow")
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo
}

// MulDivCeil returns ceil(a*b/c) under the same conditions as MulDiv
func MulDivCeil(a, b, c uint64) uint64 {
	quo := MulDiv(a, b, c)
	hi, lo := bits.Mul64(a, b)
	if _, rem := bits.Div64(hi, lo, c); rem > 0 {
		quo++
	}
	return quo
}
