package enum

import "strings"

// Category names a stream of records sharing one buffer, one producer and one
// write operation.
type Category uint8

const (
	_category_beg Category = iota
	CategoryBazaar
	CategoryAuction
	_category_end
)

func (c Category) IsAvailable() bool {
	return c > _category_beg && c < _category_end
}

func (c Category) String() string {
	switch c {
	case CategoryBazaar:
		return "bazaar"
	case CategoryAuction:
		return "auctions"
	default:
		return "unknown"
	}
}

// Categories returns every available category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, int(_category_end)-1)
	for c := _category_beg + 1; c < _category_end; c++ {
		out = append(out, c)
	}
	return out
}

// ParseCategory resolves a category from its name.
func ParseCategory(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range Categories() {
		if c.String() == name {
			return c, true
		}
	}
	return _category_beg, false
}
