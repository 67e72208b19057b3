package hydrate

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	flags "github.com/goliatone/go-flagtree"
)

// Context identifies the category being decoded.
type Context struct {
	Path   string
	TreeID string
}

// Decoding stages reported by Error.
const (
	StageResolve  = "resolve"
	StagePreHook  = "pre-hook"
	StageDecode   = "decode"
	StageCustom   = "custom decode"
	StagePostHook = "post-hook"
)

// Error reports the stage and category a decode failed in.
type Error struct {
	Stage string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s category %q: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PreHook may rewrite the resolved category before decoding. Returning nil
// keeps the current payload.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces mapstructure decoding.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns resolved categories into typed values. Struct fields are
// matched by their `flag` tag; durations and comma-separated lists are
// accepted as strings.
type Decoder[T any] struct {
	pre    []PreHook
	post   []PostHook[T]
	tweaks []func(*mapstructure.DecoderConfig)
	hooks  []mapstructure.DecodeHookFunc
	custom CustomDecoder[T]
}

// NewDecoder builds a Decoder from opts.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{
		hooks: []mapstructure.DecodeHookFunc{
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// WithPreHook runs hook before decoding, after earlier pre-hooks.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

// WithPostHook runs hook after decoding, after earlier post-hooks.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithDecodeHook adds a mapstructure conversion hook.
func WithDecodeHook[T any](hook mapstructure.DecodeHookFunc) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.hooks = append(d.hooks, hook)
		}
	}
}

// WithErrorUnused fails when a resolved flag has no matching field.
func WithErrorUnused[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	})
}

// WithStrictTypes disables weak conversions such as "1" to 1.
func WithStrictTypes[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(cfg *mapstructure.DecoderConfig) {
		cfg.WeaklyTypedInput = false
	})
}

// WithDecoderConfig edits the mapstructure configuration directly.
func WithDecoderConfig[T any](tweak func(*mapstructure.DecoderConfig)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if tweak != nil {
			d.tweaks = append(d.tweaks, tweak)
		}
	}
}

// WithCustomDecoder replaces mapstructure decoding with decoder.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// Decode resolves the category at path, the whole tree when empty, and
// decodes it into T.
func (d *Decoder[T]) Decode(tree *flags.Tree, path string) (T, error) {
	if tree == nil {
		var zero T
		return zero, &Error{Stage: StageResolve, Path: path, Err: errors.New("tree is nil")}
	}
	return d.DecodeAt(tree.At(path))
}

// DecodeAt resolves the addressed category and decodes it into T.
func (d *Decoder[T]) DecodeAt(at flags.Address) (T, error) {
	ctx := Context{Path: at.Path()}
	if tree := at.Tree(); tree != nil {
		ctx.TreeID = tree.ID()
	}
	payload, err := at.AsDict()
	if err != nil {
		var zero T
		return zero, &Error{Stage: StageResolve, Path: ctx.Path, Err: err}
	}
	return d.DecodeDict(ctx, payload)
}

// DecodeDict decodes an already resolved category.
func (d *Decoder[T]) DecodeDict(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, &Error{Stage: StageDecode, Path: ctx.Path, Err: errors.New("payload is nil")}
	}

	payload, err := d.runPreHooks(ctx, payload)
	if err != nil {
		return zero, err
	}
	result, err := d.decode(ctx, payload)
	if err != nil {
		return zero, err
	}
	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, &Error{Stage: StagePostHook, Path: ctx.Path, Err: err}
		}
	}
	return result, nil
}

func (d *Decoder[T]) runPreHooks(ctx Context, payload map[string]any) (map[string]any, error) {
	for _, hook := range d.pre {
		next, err := hook(ctx, payload)
		if err != nil {
			return nil, &Error{Stage: StagePreHook, Path: ctx.Path, Err: err}
		}
		if next != nil {
			payload = next
		}
	}
	return payload, nil
}

func (d *Decoder[T]) decode(ctx Context, payload map[string]any) (T, error) {
	var result T
	if d.custom != nil {
		decoded, err := d.custom(ctx, payload)
		if err != nil {
			return result, &Error{Stage: StageCustom, Path: ctx.Path, Err: err}
		}
		return decoded, nil
	}

	cfg := &mapstructure.DecoderConfig{
		Result:           &result,
		TagName:          "flag",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(d.hooks...),
	}
	for _, tweak := range d.tweaks {
		tweak(cfg)
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return result, &Error{Stage: StageDecode, Path: ctx.Path, Err: err}
	}
	if err := decoder.Decode(payload); err != nil {
		return result, &Error{Stage: StageDecode, Path: ctx.Path, Err: err}
	}
	return result, nil
}
