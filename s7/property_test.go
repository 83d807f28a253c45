package s7

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

// genTag builds an arbitrary valid non-string Tag for property tests.
func genTag(t *rapid.T) Tag {
	area := rapid.SampledFrom([]Area{AreaDB, AreaMerker, AreaInput, AreaOutput}).Draw(t, "area")
	dt := rapid.SampledFrom([]DataType{Bit, Byte, Char, Int, Word, DInt, DWord, Real, LReal}).Draw(t, "dataType")
	db := 0
	if area == AreaDB {
		db = rapid.IntRange(1, 999).Draw(t, "db")
	}
	start := rapid.IntRange(0, 1000).Draw(t, "start")
	bit := 0
	length := 1
	if dt == Bit {
		bit = rapid.IntRange(0, 7).Draw(t, "bit")
	} else {
		length = rapid.IntRange(1, 20).Draw(t, "length")
	}
	return MustTag(area, db, dt, start, bit, length)
}

// Property 1: parse(format(t)) == t for every canonically constructed tag.
func TestPropertyParseFormatRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tag := genTag(rt)
		text := tag.String()
		got, err := ParseAddress(text)
		if err != nil {
			rt.Fatalf("ParseAddress(%q) error: %v", text, err)
		}
		if got != tag {
			rt.Fatalf("round trip mismatch: %+v -> %q -> %+v", tag, text, got)
		}
	})
}

// Property 2: every planned batch respects the request/response byte
// budgets and the 20-item cap.
func TestPropertyPlannedBatchesRespectBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pduSize := uint16(rapid.IntRange(minPDUSize, maxPDUSize).Draw(rt, "pduSize"))
		n := rapid.IntRange(1, 40).Draw(rt, "n")
		optimize := rapid.Bool().Draw(rt, "optimize")

		tags := make([]Tag, n)
		for i := range tags {
			tags[i] = MustTag(AreaDB, 1, Int, i*2, 0, 1)
		}

		plan, err := planReads(tags, pduSize, optimize)
		if err != nil {
			rt.Fatalf("planReads error: %v", err)
		}
		reqBudget := int(pduSize) - readRequestOverhead
		respBudget := int(pduSize) - readResponseOverhead
		for _, batch := range plan.batches {
			if len(batch) > maxItemsPerPDU {
				rt.Fatalf("batch has %d items, want <= %d", len(batch), maxItemsPerPDU)
			}
			reqUsed, respUsed := 0, 0
			for _, g := range batch {
				reqUsed += readItemRequestCost
				respUsed += 4 + evenUp(g.size)
			}
			if reqUsed > reqBudget {
				rt.Fatalf("batch request size %d exceeds budget %d", reqUsed, reqBudget)
			}
			if respUsed > respBudget {
				rt.Fatalf("batch response size %d exceeds budget %d", respUsed, respBudget)
			}
		}
	})
}

// Property 6: tsap_from_rack_slot(r, s) == 0x0100 | (r*32 + s).
func TestPropertyTSAPFormula(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rack := rapid.IntRange(0, 7).Draw(rt, "rack")
		slot := rapid.IntRange(0, 31).Draw(rt, "slot")
		want := uint16(0x0100 | (rack*32 + slot))
		if got := TSAPFromRackSlot(rack, slot); got != want {
			rt.Fatalf("TSAPFromRackSlot(%d,%d) = 0x%04X, want 0x%04X", rack, slot, got, want)
		}
	})
}

// Property: encodeScalar/decodeScalar round trip for every numeric type.
func TestPropertyScalarRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dt := rapid.SampledFrom([]DataType{Byte, Int, Word, DInt, DWord, Real, LReal}).Draw(rt, "dataType")
		var v Value
		switch dt {
		case Byte:
			v = IntValue(int64(rapid.IntRange(0, 255).Draw(rt, "v")))
		case Int:
			v = IntValue(int64(rapid.IntRange(-32768, 32767).Draw(rt, "v")))
		case Word:
			v = IntValue(int64(rapid.IntRange(0, 65535).Draw(rt, "v")))
		case DInt:
			v = IntValue(int64(rapid.Int32().Draw(rt, "v")))
		case DWord:
			v = IntValue(int64(rapid.Uint32().Draw(rt, "v")))
		case Real:
			v = RealValue(float64(rapid.Float32().Draw(rt, "v")))
		case LReal:
			v = RealValue(rapid.Float64().Draw(rt, "v"))
		}

		raw, err := encodeScalar(dt, v)
		if err != nil {
			rt.Fatalf("encodeScalar error: %v", err)
		}
		got, err := decodeScalar(dt, 0, raw)
		if err != nil {
			rt.Fatalf("decodeScalar error: %v", err)
		}
		if !reflect.DeepEqual(got, v) {
			rt.Fatalf("round trip mismatch for %s: %+v -> % X -> %+v", dt, v, raw, got)
		}
	})
}
