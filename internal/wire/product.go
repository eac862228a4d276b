package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

// EncodeProduct writes p as {id, name, description, price}.
func EncodeProduct(e *jx.Encoder, p product.Snapshot) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.ObjEnd()
}

// EncodeProducts writes products as a JSON array.
func EncodeProducts(e *jx.Encoder, products []product.Snapshot) {
	e.ArrStart()
	for _, p := range products {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
}

// DecodeProduct reads a single product object. Unknown fields are ignored;
// id and price are required.
func DecodeProduct(d *jx.Decoder) (product.Snapshot, error) {
	var (
		p               product.Snapshot
		hasID, hasPrice bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if null, err := skipNull(d); null || err != nil {
			return err
		}
		switch normalizeKey(key) {
		case "id":
			id, err := d.Int64()
			if err != nil {
				return fieldErr("id", err)
			}
			p.ID, hasID = id, true
		case "name":
			s, err := d.Str()
			if err != nil {
				return fieldErr("name", err)
			}
			p.Name = s
		case "description":
			s, err := d.Str()
			if err != nil {
				return fieldErr("description", err)
			}
			p.Description = s
		case "price":
			price, err := decodeMoney(d)
			if err != nil {
				return fieldErr("price", err)
			}
			p.Price, hasPrice = price, true
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return product.Snapshot{}, err
	}
	switch {
	case !hasID:
		return product.Snapshot{}, errors.New("product without id")
	case !hasPrice:
		return product.Snapshot{}, errors.Errorf("product %d without price", p.ID)
	}
	return p, nil
}

// DecodeProducts reads a JSON array of product objects.
func DecodeProducts(d *jx.Decoder) ([]product.Snapshot, error) {
	products := []product.Snapshot{}
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
