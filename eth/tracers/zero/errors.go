// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.
package zero

import "errors"

var (
	ErrMissingReceipt         = errors.New("missing receipt")
	ErrReceiptCountMismatch   = errors.New("receipt count does not match transaction count")
	ErrSenderCountMismatch    = errors.New("sender count does not match transaction count")
	ErrCumulativeGasDecreased = errors.New("cumulative gas used decreased")

	ErrStateUnavailable = errors.New("pre-block state unavailable")
	ErrExecution        = errors.New("transaction execution failed")
	ErrWitness          = errors.New("state witness failed")
)

// IsInputError reports whether err is caused by malformed input from the
// caller rather than by a failure of the host.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingReceipt) ||
		errors.Is(err, ErrReceiptCountMismatch) ||
		errors.Is(err, ErrSenderCountMismatch) ||
		errors.Is(err, ErrCumulativeGasDecreased)
}
