package wire

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/ecommerce-orders/internal/domain/order"
)

func encodeOrderFields(e *jx.Encoder, o *order.Order) {
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("customerName")
	e.Str(o.CustomerName)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("productIds")
	encodeIDs(e, o.ProductIDs)
	e.FieldStart("totalAmount")
	encodeMoney(e, o.TotalAmount)
	e.FieldStart("orderDate")
	encodeTime(e, o.OrderDate)
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, o.UpdatedAt)
}

// EncodeOrder writes the summary fields of o.
func EncodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	encodeOrderFields(e, o)
	e.ObjEnd()
}

// EncodeOrders writes a JSON array of order summaries.
func EncodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		EncodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

// EncodeOrderDetails writes an order with its resolved product summaries.
func EncodeOrderDetails(e *jx.Encoder, d *order.Details) {
	e.ObjStart()
	encodeOrderFields(e, d.Order)
	e.FieldStart("products")
	EncodeProducts(e, d.Products)
	e.ObjEnd()
}

// DecodeCreateOrder reads {customerName, address, productIds, orderDate}.
// Absent or null fields stay zero and are left to domain validation.
func DecodeCreateOrder(d *jx.Decoder) (order.CreateRequest, error) {
	var req order.CreateRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if null, err := skipNull(d); null || err != nil {
			return err
		}
		switch normalizeKey(key) {
		case "customername":
			return decodeStr(d, "customerName", &req.CustomerName)
		case "address":
			return decodeStr(d, "address", &req.Address)
		case "productids":
			ids, err := decodeIDs(d)
			if err != nil {
				return fieldErr("productIds", err)
			}
			req.ProductIDs = ids
		case "orderdate":
			t, err := decodeTime(d)
			if err != nil {
				return fieldErr("orderDate", err)
			}
			req.OrderDate = t
		default:
			return d.Skip()
		}
		return nil
	})
	return req, err
}

// DecodeUpdateOrder reads {customerName, address, productIds, totalAmount}.
func DecodeUpdateOrder(d *jx.Decoder) (order.UpdateRequest, error) {
	var req order.UpdateRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if null, err := skipNull(d); null || err != nil {
			return err
		}
		switch normalizeKey(key) {
		case "customername":
			return decodeStr(d, "customerName", &req.CustomerName)
		case "address":
			return decodeStr(d, "address", &req.Address)
		case "productids":
			ids, err := decodeIDs(d)
			if err != nil {
				return fieldErr("productIds", err)
			}
			req.ProductIDs = ids
		case "totalamount":
			total, err := decodeMoney(d)
			if err != nil {
				return fieldErr("totalAmount", err)
			}
			req.TotalAmount = total
		default:
			return d.Skip()
		}
		return nil
	})
	return req, err
}

func decodeStr(d *jx.Decoder, field string, dst *string) error {
	s, err := d.Str()
	if err != nil {
		return fieldErr(field, err)
	}
	*dst = s
	return nil
}

// Error is the body of every non-2xx response.
type Error struct {
	Message string
	// Field names the request field that failed validation.
	Field string
	// Missing lists product ids unknown to the catalog.
	Missing    []int64
	Provided   *decimal.Decimal
	Calculated *decimal.Decimal
}

// Encode writes {error, field?, missing?, provided?, calculated?}.
func (b Error) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("error")
	e.Str(b.Message)
	if b.Field != "" {
		e.FieldStart("field")
		e.Str(b.Field)
	}
	if len(b.Missing) > 0 {
		e.FieldStart("missing")
		encodeIDs(e, b.Missing)
	}
	if b.Provided != nil {
		e.FieldStart("provided")
		encodeMoney(e, *b.Provided)
	}
	if b.Calculated != nil {
		e.FieldStart("calculated")
		encodeMoney(e, *b.Calculated)
	}
	e.ObjEnd()
}
