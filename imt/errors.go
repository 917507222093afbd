/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package imt

import "errors"

var (
	// ErrCapacityExceeded is returned when a tree is built with more leaves
	// than arity^depth.
	ErrCapacityExceeded = errors.New("the tree cannot contain more than arity^depth leaves")
	// ErrTreeFull is returned by Insert when every leaf slot is taken.
	ErrTreeFull = errors.New("the tree is full")
	// ErrLeafDoesNotExist is returned for indices outside the populated
	// leaf range.
	ErrLeafDoesNotExist = errors.New("the leaf does not exist in this tree")
	// ErrMalformedProof is returned when a proof's shape does not match the
	// arity (or depth) it is verified against.
	ErrMalformedProof = errors.New("malformed merkle proof")
	// ErrInvalidParameters is returned for a nil hash function, a depth
	// below one or an arity below two.
	ErrInvalidParameters = errors.New("invalid tree parameters")
)
