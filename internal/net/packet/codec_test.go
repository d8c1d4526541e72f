package packet

import (
	"strings"
	"testing"

	"github.com/otgo/server/internal/geo"
	"github.com/pixil98/go-testutil"
)

var testTraits = map[uint16]ItemTraits{
	100: {},
	200: {Stackable: true},
	300: {Chargeable: true, Stackable: true},
	400: {Fluid: true},
}

func traitsOf(id uint16) ItemTraits { return testTraits[id] }

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteC(0xAB)
	w.WriteH(0xBEEF)
	w.WriteD(0xDEADBEEF)
	w.WriteS("Knight Élan")
	w.WriteS("")
	w.WritePosition(geo.Position{X: 32369, Y: 32241, Z: 7})
	w.WriteItem(DescribeItem(100, testTraits[100], 0, 0, 0))
	w.WriteItem(DescribeItem(200, testTraits[200], 57, 0, 0))
	w.WriteItem(DescribeItem(300, testTraits[300], 9, 3, 0))
	w.WriteItem(DescribeItem(400, testTraits[400], 0, 0, 5))

	r := NewReader(w.Bytes())
	testutil.AssertEqual(t, "byte", r.ReadC(), byte(0xAB))
	testutil.AssertEqual(t, "u16", r.ReadH(), uint16(0xBEEF))
	testutil.AssertEqual(t, "u32", r.ReadD(), uint32(0xDEADBEEF))
	testutil.AssertEqual(t, "latin1 string", r.ReadS(), "Knight Élan")
	testutil.AssertEqual(t, "empty string", r.ReadS(), "")
	testutil.AssertEqual(t, "position", r.ReadPosition(), geo.Position{X: 32369, Y: 32241, Z: 7})
	testutil.AssertEqual(t, "plain item", r.ReadItem(traitsOf), ItemDescriptor{ClientID: 100})
	testutil.AssertEqual(t, "stack item", r.ReadItem(traitsOf), ItemDescriptor{ClientID: 200, Extra: ExtraCount, Value: 57})
	testutil.AssertEqual(t, "charge item", r.ReadItem(traitsOf), ItemDescriptor{ClientID: 300, Extra: ExtraCharges, Value: 3})
	testutil.AssertEqual(t, "fluid item", r.ReadItem(traitsOf), ItemDescriptor{ClientID: 400, Extra: ExtraFluid, Value: 5})
	testutil.AssertEqual(t, "remaining", r.Remaining(), 0)
	testutil.AssertEqual(t, "overrun", r.Overrun(), false)
}

func TestStringWireLayout(t *testing.T) {
	w := NewWriter()
	w.WriteS("ab")
	testutil.AssertEqual(t, "layout", string(w.Bytes()), "\x02\x00ab")
}

func TestItemExtraPriority(t *testing.T) {
	testutil.AssertEqual(t, "charges first", ItemTraits{Chargeable: true, Stackable: true, Fluid: true}.Extra(), ExtraCharges)
	testutil.AssertEqual(t, "stack before fluid", ItemTraits{Stackable: true, Fluid: true}.Extra(), ExtraCount)
	testutil.AssertEqual(t, "fluid", ItemTraits{Fluid: true}.Extra(), ExtraFluid)
	testutil.AssertEqual(t, "none", ItemTraits{}.Extra(), ExtraNone)
}

func TestTruncatedReadsFlagOverrun(t *testing.T) {
	w := NewWriter()
	w.WriteD(1)
	w.WriteS("hello")
	w.WritePosition(geo.Position{X: 1, Y: 2, Z: 3})
	full := w.Bytes()

	for cut := 0; cut < len(full); cut++ {
		r := NewReader(full[:cut])
		r.ReadD()
		r.ReadS()
		r.ReadPosition()
		if !r.Overrun() {
			t.Fatalf("cut at %d: expected overrun", cut)
		}
		if r.Remaining() < 0 {
			t.Fatalf("cut at %d: cursor past end", cut)
		}
	}
}

func TestOverrunReturnsZeroValues(t *testing.T) {
	r := NewReader([]byte{0x05, 0x00, 'a'})
	testutil.AssertEqual(t, "string", r.ReadS(), "")
	testutil.AssertEqual(t, "u32", r.ReadD(), uint32(0))
	testutil.AssertEqual(t, "overrun", r.Overrun(), true)
}

func TestWriterDropsOnOverflow(t *testing.T) {
	w := NewWriter()
	w.WriteBytes(make([]byte, MaxPayload-1))
	w.WriteH(7)
	testutil.AssertEqual(t, "len after dropped u16", w.Len(), MaxPayload-1)
	testutil.AssertEqual(t, "dropped", w.Dropped(), true)
	w.WriteC(1)
	testutil.AssertEqual(t, "byte still fits", w.Len(), MaxPayload)
}

func TestWriterRejectsLongString(t *testing.T) {
	w := NewWriter()
	w.WriteS(strings.Repeat("x", MaxStringLength+1))
	testutil.AssertEqual(t, "len", w.Len(), 0)
	testutil.AssertEqual(t, "dropped", w.Dropped(), true)
}

func TestAppend(t *testing.T) {
	a := NewWriterWithOpcode(1)
	b := NewWriterWithOpcode(2)
	testutil.AssertEqual(t, "appended", a.Append(b), true)
	testutil.AssertEqual(t, "bytes", string(a.Bytes()), "\x01\x02")

	big := NewWriter()
	big.WriteBytes(make([]byte, MaxPayload))
	testutil.AssertEqual(t, "overflowing append", a.Append(big), false)
	testutil.AssertEqual(t, "unchanged", a.Len(), 2)
}
