package bus

const (
	StandardMask uint32 = 0x7FF
	ExtendedMask uint32 = 0x1FFFFFFF
)

// Filter is a single acceptance filter. Bits set in Mask must match Code.
// The zero Filter accepts every frame.
type Filter struct {
	Code     uint32
	Mask     uint32
	Extended bool
}

// ExactFilter accepts only id, within the standard or extended id width.
func ExactFilter(id uint32, extended bool) Filter {
	mask := StandardMask
	if extended {
		mask = ExtendedMask
	}
	return Filter{Code: id & mask, Mask: mask, Extended: extended}
}

func (f Filter) Accepts(id uint32) bool {
	if f == (Filter{}) {
		return true
	}
	width := StandardMask
	if f.Extended {
		width = ExtendedMask
	}
	if id&^width != 0 {
		return false
	}
	return id&f.Mask == f.Code&f.Mask
}
