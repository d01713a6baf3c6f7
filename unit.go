// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import "fmt"

// Unit identifies the physical quantity carried by a Record or CPUStat
// field. Conversions are only ever meaningful within a family: energy
// units convert to other energy units, power units convert to other
// power units, and Percentage/Jiffies never convert at all.
type Unit int

const (
	Joule Unit = iota
	MilliJoule
	MicroJoule
	MegaWatt
	KiloWatt
	Watt
	MilliWatt
	MicroWatt
	Percentage
	Jiffies
)

func (u Unit) String() string {
	switch u {
	case Joule:
		return "Joules"
	case MilliJoule:
		return "MilliJoules"
	case MicroJoule:
		return "MicroJoules"
	case MegaWatt:
		return "MegaWatts"
	case KiloWatt:
		return "KiloWatts"
	case Watt:
		return "Watts"
	case MilliWatt:
		return "MilliWatts"
	case MicroWatt:
		return "MicroWatts"
	case Percentage:
		return "Percentage"
	case Jiffies:
		return "Jiffies"
	default:
		return "Unknown"
	}
}

// energyOrder and powerOrder rank each family's units from largest to
// smallest magnitude, mirroring the original implementation's ordered
// arrays: position distance times a power of 1000 gives the conversion
// factor.
var energyOrder = []Unit{Joule, MilliJoule, MicroJoule}
var powerOrder = []Unit{MegaWatt, KiloWatt, Watt, MilliWatt, MicroWatt}

func indexOf(order []Unit, u Unit) (int, bool) {
	for i, o := range order {
		if o == u {
			return i, true
		}
	}
	return 0, false
}

// ConvertUnit converts measure from sourceUnit to destUnit. Both units must
// belong to the same family (both energy, or both power); any other
// pairing, including an energy-to-power conversion without a time
// dimension, returns an error instead of a value.
func ConvertUnit(measure float64, sourceUnit, destUnit Unit) (float64, error) {
	if sourceUnit == destUnit {
		return measure, nil
	}

	if srcPos, srcOK := indexOf(energyOrder, sourceUnit); srcOK {
		if dstPos, dstOK := indexOf(energyOrder, destUnit); dstOK {
			return measure * getMult(srcPos, dstPos), nil
		}
	}
	if srcPos, srcOK := indexOf(powerOrder, sourceUnit); srcOK {
		if dstPos, dstOK := indexOf(powerOrder, destUnit); dstOK {
			return measure * getMult(srcPos, dstPos), nil
		}
	}
	return 0, fmt.Errorf("cannot convert %s to %s: not in the same unit family (or missing time dimension)", sourceUnit, destUnit)
}

// getMult computes the multiplicative factor for moving a value srcPos
// positions away from dstPos in an order-of-magnitude table where each
// step is a factor of 1000.
func getMult(srcPos, dstPos int) float64 {
	mult := 1.0
	switch {
	case dstPos > srcPos:
		for i := 0; i < dstPos-srcPos; i++ {
			mult *= 1000.0
		}
	case dstPos < srcPos:
		for i := 0; i < srcPos-dstPos; i++ {
			mult /= 1000.0
		}
	}
	return mult
}
