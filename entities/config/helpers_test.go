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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	for _, v := range []string{"on", "enabled", "1", "true", "TRUE", "On"} {
		assert.True(t, Enabled(v), v)
	}
	for _, v := range []string{"", "off", "0", "false", "enabeld"} {
		assert.False(t, Enabled(v), v)
	}
}

func TestLookupInt(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		t.Setenv("COMPACTOR_TEST_INT", "")
		_, ok, err := LookupInt("COMPACTOR_TEST_INT")
		require.Nil(t, err)
		assert.False(t, ok)
	})

	t.Run("valid", func(t *testing.T) {
		t.Setenv("COMPACTOR_TEST_INT", "42")
		v, ok, err := LookupInt("COMPACTOR_TEST_INT")
		require.Nil(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, v)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("COMPACTOR_TEST_INT", "forty-two")
		_, _, err := LookupInt("COMPACTOR_TEST_INT")
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "COMPACTOR_TEST_INT")
	})
}
