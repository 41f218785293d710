// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/iancoleman/strcase"
)

// Logger adds MQTT packet tracing to the shared logger.
type Logger struct{ log.Logger }

// Packet logs the exported, non-zero fields of a paho packet at debug level
// using snake_case attribute names.
func (l Logger) Packet(ctx context.Context, name string, packet any) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}

	val := deref(reflect.ValueOf(packet))
	if !val.IsValid() || val.Kind() != reflect.Struct {
		l.Log(ctx, slog.LevelDebug, name)
		return
	}
	l.Log(ctx, slog.LevelDebug, name, fieldAttrs(val)...)
}

func fieldAttrs(val reflect.Value) []slog.Attr {
	typ := val.Type()
	var attrs []slog.Attr
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		attrs = append(attrs, fieldAttr(
			strcase.ToSnake(f.Name),
			deref(val.Field(i)),
		)...)
	}
	return attrs
}

func fieldAttr(name string, val reflect.Value) []slog.Attr {
	if !val.IsValid() || val.IsZero() {
		return nil
	}

	switch name {
	case "properties":
		return fieldAttrs(val)
	case "subscriptions":
		if subs, ok := val.Interface().([]paho.SubscribeOptions); ok {
			return fieldAttrs(reflect.ValueOf(subs[0]))
		}
	case "topics":
		if topics, ok := val.Interface().([]string); ok {
			return []slog.Attr{slog.String("topic", topics[0])}
		}
	case "reasons":
		if reasons, ok := val.Interface().([]byte); ok {
			return []slog.Attr{slog.Int("reason_code", int(reasons[0]))}
		}
	case "qo_s":
		return []slog.Attr{slog.Any("qos", val.Interface())}
	}

	switch v := val.Interface().(type) {
	case []byte:
		return []slog.Attr{slog.String(name, string(v))}
	case paho.UserProperties:
		args := make([]any, len(v))
		for i, p := range v {
			args[i] = slog.String(p.Key, p.Value)
		}
		return []slog.Attr{slog.Group(name, args...)}
	}

	if val.Kind() == reflect.Struct {
		nested := fieldAttrs(val)
		if len(nested) == 0 {
			return nil
		}
		args := make([]any, len(nested))
		for i, a := range nested {
			args[i] = a
		}
		return []slog.Attr{slog.Group(name, args...)}
	}

	return []slog.Attr{slog.Any(name, val.Interface())}
}

func deref(val reflect.Value) reflect.Value {
	for val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	return val
}
