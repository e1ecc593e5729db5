package rediskit

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/partition"
)

// Hash values use the store's native text form rather than the codec:
// numbers, booleans and times are written as Redis would print them.

func (c *Client) hashSet(key string, fields map[string]any, db partition.DB) op[struct{}] {
	index := db.Resolve(c.defaultIndex())
	native := make(map[string]string, len(fields))
	for field, value := range fields {
		s, err := cast.ToStringE(value)
		if err != nil {
			return failed[struct{}](c, "hash_set", index, fmt.Errorf("%w: field %s: %v", ErrSerialization, field, err))
		}
		native[field] = s
	}
	return prepare(c, "hash_set", db, func(ctx context.Context, h kv.Handle) (struct{}, error) {
		return struct{}{}, h.HashSet(ctx, key, native)
	})
}

// HashSet writes fields into the hash at key, leaving other fields untouched.
func (c *Client) HashSet(ctx context.Context, key string, fields map[string]any, db partition.DB) error {
	_, err := c.hashSet(key, fields, db).run(ctx)
	return err
}

func hashGetAs[T any](c *Client, key, field string, db partition.DB) op[T] {
	return prepare(c, "hash_get", db, func(ctx context.Context, h kv.Handle) (T, error) {
		raw, err := h.HashGet(ctx, key, field)
		if err != nil {
			var zero T
			return absent(zero, err)
		}
		return convert[T](raw)
	})
}

// HashGetAs reads one field and converts it natively to T. A missing key or
// field yields the zero T.
func HashGetAs[T any](ctx context.Context, c *Client, key, field string, db partition.DB) (T, error) {
	return hashGetAs[T](c, key, field, db).run(ctx)
}

func (c *Client) hashGetAll(key string, db partition.DB) op[map[string]string] {
	return prepare(c, "hash_get_all", db, func(ctx context.Context, h kv.Handle) (map[string]string, error) {
		return h.HashGetAll(ctx, key)
	})
}

// HashGetAll returns every field of key unconverted. A missing key yields an empty map.
func (c *Client) HashGetAll(ctx context.Context, key string, db partition.DB) (map[string]string, error) {
	return c.hashGetAll(key, db).run(ctx)
}

func hashGetAllAs[T any](c *Client, key string, db partition.DB) op[T] {
	return prepare(c, "hash_get_all", db, func(ctx context.Context, h kv.Handle) (T, error) {
		var out T
		fields, err := h.HashGetAll(ctx, key)
		if err != nil {
			return out, err
		}
		return out, decodeFields(fields, &out)
	})
}

// HashGetAllAs converts the whole hash into T, typically a struct whose
// fields carry `redis:"name"` tags or a map.
func HashGetAllAs[T any](ctx context.Context, c *Client, key string, db partition.DB) (T, error) {
	return hashGetAllAs[T](c, key, db).run(ctx)
}

func (c *Client) hashLength(key string, db partition.DB) op[int64] {
	return prepare(c, "hash_length", db, func(ctx context.Context, h kv.Handle) (int64, error) {
		return h.HashLength(ctx, key)
	})
}

// HashLength returns the number of fields in key, 0 when absent.
func (c *Client) HashLength(ctx context.Context, key string, db partition.DB) (int64, error) {
	return c.hashLength(key, db).run(ctx)
}

// convert turns a stored field into T using the store's text conventions.
func convert[T any](raw string) (T, error) {
	var (
		out T
		v   any
		err error
	)
	switch any(out).(type) {
	case string:
		v = raw
	case []byte:
		v = []byte(raw)
	case bool:
		v, err = cast.ToBoolE(raw)
	case int:
		v, err = cast.ToIntE(raw)
	case int32:
		v, err = cast.ToInt32E(raw)
	case int64:
		v, err = cast.ToInt64E(raw)
	case uint:
		v, err = cast.ToUintE(raw)
	case uint32:
		v, err = cast.ToUint32E(raw)
	case uint64:
		v, err = cast.ToUint64E(raw)
	case float32:
		v, err = cast.ToFloat32E(raw)
	case float64:
		v, err = cast.ToFloat64E(raw)
	case time.Duration:
		v, err = cast.ToDurationE(raw)
	case time.Time:
		v, err = cast.ToTimeE(raw)
	default:
		if err := weakDecode(raw, &out); err != nil {
			return out, fmt.Errorf("%w: convert %q to %T: %v", ErrSerialization, raw, out, err)
		}
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("%w: convert %q to %T: %v", ErrSerialization, raw, out, err)
	}
	return v.(T), nil
}

func newDecoder(result any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "redis",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
}

func weakDecode(raw string, result any) error {
	dec, err := newDecoder(result)
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func decodeFields(fields map[string]string, result any) error {
	dec, err := newDecoder(result)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("%w: decode hash into %T: %v", ErrSerialization, result, err)
	}
	return nil
}
