//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewBackoff returns the backoff used for remote checkpoint I/O.
func NewBackoff() backoff.BackOff {
	return NewExponentialBackoff(100*time.Millisecond, 30*time.Second)
}

// ConstantBackoff retries maxrtry times, waiting interval between attempts.
func ConstantBackoff(maxrtry int, interval time.Duration) backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxrtry))
}

// After MaxElapsedTime the backoff.BackOff returns Stop.
// It never stops if MaxElapsedTime == 0.
func NewExponentialBackoff(initialInterval, maxElapsedTime time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initialInterval
	eb.MaxElapsedTime = maxElapsedTime
	return eb
}

// Do runs op until it succeeds, returns a permanent error or b gives up.
// Errors for which retryable returns false stop the loop immediately.
func Do(ctx context.Context, b backoff.BackOff, retryable func(error) bool, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
