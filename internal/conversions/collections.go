package conversions

import (
	"errors"
	"fmt"
	"net/url"

	"code.superseriousbusiness.org/activity/streams/vocab"
)

// Item is a collection member: either a bare IRI or an embedded object.
type Item struct {
	IRI    *url.URL
	Object vocab.Type
}

// Collection is a collection or a collection page. For a collection whose first page is embedded,
// FirstPage holds it; otherwise First is the IRI of that page.
type Collection struct {
	Items      []Item
	First      *url.URL
	FirstPage  *Collection
	Next       *url.URL
	Prev       *url.URL
	TotalItems int
}

func ConvertCollection(t vocab.Type) (*Collection, error) {
	c := &Collection{TotalItems: TotalItems(t)}

	switch v := t.(type) {
	case withOrderedItems:
		if items := v.GetActivityStreamsOrderedItems(); items != nil {
			for it := items.Begin(); it != items.End(); it = it.Next() {
				c.Items = appendItem(c.Items, it)
			}
		}
	case withItems:
		if items := v.GetActivityStreamsItems(); items != nil {
			for it := items.Begin(); it != items.End(); it = it.Next() {
				c.Items = appendItem(c.Items, it)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s is not a collection", errors.ErrUnsupported, t.GetTypeName())
	}

	if f, ok := t.(withFirst); ok && f.GetActivityStreamsFirst() != nil {
		first := f.GetActivityStreamsFirst()
		if page := first.GetType(); page != nil {
			p, err := ConvertCollection(page)
			if err != nil {
				return nil, err
			}
			c.FirstPage = p
		} else if first.IsIRI() {
			c.First = first.GetIRI()
		}
	}

	if n, ok := t.(withNext); ok && n.GetActivityStreamsNext() != nil {
		c.Next = IriOf(n.GetActivityStreamsNext())
	}
	if p, ok := t.(withPrev); ok && p.GetActivityStreamsPrev() != nil {
		c.Prev = IriOf(p.GetActivityStreamsPrev())
	}

	return c, nil
}

func appendItem(items []Item, it TypeOrIri) []Item {
	if obj := it.GetType(); obj != nil {
		return append(items, Item{IRI: IriOf(it), Object: obj})
	}
	if it.IsIRI() {
		return append(items, Item{IRI: it.GetIRI()})
	}
	return items
}
