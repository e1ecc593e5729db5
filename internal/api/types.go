package api

import "encoding/json"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type StringValueDTO struct {
	Key   string `json:"key"`
	DB    string `json:"db"`
	Value any    `json:"value"`
}

type StringSetRequest struct {
	Value json.RawMessage `json:"value"`
	// Swap returns the previous value instead of a write result
	Swap bool `json:"swap,omitempty"`
}

type StringSetResponse struct {
	Written  bool `json:"written"`
	Previous any  `json:"previous,omitempty"`
}

type ResultDTO struct {
	OK bool `json:"ok"`
}

type TTLDTO struct {
	Key       string `json:"key"`
	DB        string `json:"db"`
	TTLMillis *int64 `json:"ttlMs"`
	ExpiresAt *int64 `json:"expiresAt"`
}

type ExpireRequest struct {
	TTLMillis int64 `json:"ttlMs"`
}

type HashDTO struct {
	Key    string            `json:"key"`
	DB     string            `json:"db"`
	Fields map[string]string `json:"fields"`
	Length int64             `json:"length"`
}

type HashSetRequest struct {
	Fields map[string]any `json:"fields"`
}

type SetDTO struct {
	Key     string   `json:"key"`
	DB      string   `json:"db"`
	Members []string `json:"members"`
	Length  int64    `json:"length"`
}

type SetAddRequest struct {
	Member json.RawMessage `json:"member"`
}

type SetPopDTO struct {
	Member *string `json:"member"`
}

type LifetimeDTO struct {
	DB       string `json:"db"`
	Lifetime string `json:"lifetime"`
}

type LifetimesDTO struct {
	DefaultDB string        `json:"defaultDb"`
	Lifetimes []LifetimeDTO `json:"lifetimes"`
}

type LifetimeRequest struct {
	Lifetime string `json:"lifetime"`
}

type DefaultDBRequest struct {
	DB string `json:"db"`
}
