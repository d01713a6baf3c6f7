// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertUnit_PowerFamily(t *testing.T) {
	v, err := ConvertUnit(1.0, KiloWatt, Watt)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, v)

	v, err = ConvertUnit(1.0, KiloWatt, MegaWatt)
	require.NoError(t, err)
	assert.Equal(t, 0.001, v)

	v, err = ConvertUnit(2.0, KiloWatt, MilliWatt)
	require.NoError(t, err)
	assert.Equal(t, 2000000.0, v)

	v, err = ConvertUnit(6.0, MilliWatt, Watt)
	require.NoError(t, err)
	assert.Equal(t, 0.006, v)

	v, err = ConvertUnit(12.0, MegaWatt, MicroWatt)
	require.NoError(t, err)
	assert.Equal(t, 12000000000000.0, v)
}

func TestConvertUnit_EnergyFamily(t *testing.T) {
	v, err := ConvertUnit(1.0, Joule, MicroJoule)
	require.NoError(t, err)
	assert.Equal(t, 1000000.0, v)

	v, err = ConvertUnit(2.0, Joule, MilliJoule)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, v)

	v, err = ConvertUnit(4000.0, MilliJoule, Joule)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestConvertUnit_SameUnitIsIdentity(t *testing.T) {
	v, err := ConvertUnit(42.0, Watt, Watt)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
}

func TestConvertUnit_CrossFamilyFails(t *testing.T) {
	_, err := ConvertUnit(1.0, Joule, Watt)
	require.Error(t, err)

	_, err = ConvertUnit(1.0, Percentage, Watt)
	require.Error(t, err)

	_, err = ConvertUnit(1.0, Jiffies, Joule)
	require.Error(t, err)
}

func TestUnit_String(t *testing.T) {
	assert.Equal(t, "KiloWatts", KiloWatt.String())
	assert.Equal(t, "MicroJoules", MicroJoule.String())
	assert.Equal(t, "Percentage", Percentage.String())
	assert.Equal(t, "Jiffies", Jiffies.String())
}
