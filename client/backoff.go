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

package client

import (
	"math"
	"math/rand"
	"time"
)

// Backoff decides how long to wait before the next attempt of a request.
// Returning false stops retrying.
type Backoff interface {
	Next(attempt int) (time.Duration, bool)
}

// StopBackoff never retries.
type StopBackoff struct{}

// NewStopBackoff returns a new StopBackoff.
func NewStopBackoff() *StopBackoff {
	return &StopBackoff{}
}

// Next implements Backoff.
func (b StopBackoff) Next(attempt int) (time.Duration, bool) {
	return 0, false
}

// ConstantBackoff always waits the same interval.
type ConstantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff returns a new ConstantBackoff.
func NewConstantBackoff(interval time.Duration) *ConstantBackoff {
	return &ConstantBackoff{interval: interval}
}

// Next implements Backoff.
func (b *ConstantBackoff) Next(attempt int) (time.Duration, bool) {
	return b.interval, true
}

// ExponentialBackoff doubles a randomized initial interval on every attempt
// and gives up once the maximum is reached.
type ExponentialBackoff struct {
	initial float64 // msec
	max     float64 // msec
}

// NewExponentialBackoff returns an ExponentialBackoff.
func NewExponentialBackoff(initialTimeout, maxTimeout time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		initial: float64(initialTimeout / time.Millisecond),
		max:     float64(maxTimeout / time.Millisecond),
	}
}

// Next implements Backoff.
func (b *ExponentialBackoff) Next(attempt int) (time.Duration, bool) {
	r := 1.0 + rand.Float64() // [1..2)
	m := math.Min(r*b.initial*math.Pow(2, float64(attempt)), b.max)
	if m >= b.max {
		return 0, false
	}
	return time.Duration(int64(m)) * time.Millisecond, true
}
