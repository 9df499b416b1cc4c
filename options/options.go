// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package options implements the key/value option store the solvers are
// configured from. Keys are flat strings made of an operator prefix and an
// option name, for example "hpddm_tol" or "hpddm_krylov_method".
package options

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPrefix is the prefix of the options read by the solvers when the
// operator does not provide one.
const DefaultPrefix = "hpddm_"

// Options is a string-keyed option store safe for concurrent reads. The zero
// value is an empty store ready to use.
type Options struct {
	mu   sync.RWMutex
	vals map[string]string
}

// New returns an Options holding the given key/value pairs.
func New(kv map[string]string) *Options {
	o := &Options{}
	for k, v := range kv {
		o.Set(k, v)
	}
	return o
}

// Set stores value under key, replacing any previous value.
func (o *Options) Set(key, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.vals == nil {
		o.vals = make(map[string]string)
	}
	o.vals[key] = value
}

// Lookup returns the raw value stored under key.
func (o *Options) Lookup(key string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.vals[key]
	return v, ok
}

// Has reports whether key is set.
func (o *Options) Has(key string) bool {
	_, ok := o.Lookup(key)
	return ok
}

// Keys returns the sorted keys of the store.
func (o *Options) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.vals))
	for k := range o.vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value of key, or def when it is not set.
func (o *Options) String(key, def string) string {
	if v, ok := o.Lookup(key); ok {
		return v
	}
	return def
}

// Float returns the value of key parsed as a float64, or def when it is not
// set.
func (o *Options) Float(key string, def float64) (float64, error) {
	v, ok := o.Lookup(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("options: %s: %w", key, err)
	}
	return f, nil
}

// Int returns the value of key parsed as an int, or def when it is not set.
// Values written in floating-point notation with an integral value, such as
// "1e3", are accepted.
func (o *Options) Int(key string, def int) (int, error) {
	v, ok := o.Lookup(key)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err == nil {
		return i, nil
	}
	f, ferr := strconv.ParseFloat(v, 64)
	if ferr != nil || f != float64(int(f)) {
		return def, fmt.Errorf("options: %s: %w", key, err)
	}
	return int(f), nil
}

// Bool returns the value of key parsed as a bool. A key set with an empty
// value, as done by a bare command-line flag, is true.
func (o *Options) Bool(key string, def bool) (bool, error) {
	v, ok := o.Lookup(key)
	if !ok {
		return def, nil
	}
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("options: %s: %w", key, err)
	}
	return b, nil
}

// Parse adds the options found in args. Each argument has the form
// "-key=value", "key=value" or "-key" for a boolean flag; a leading "--" is
// accepted as well.
func (o *Options) Parse(args []string) error {
	for _, arg := range args {
		s := strings.TrimLeft(arg, "-")
		if s == "" {
			return fmt.Errorf("options: malformed argument %q", arg)
		}
		key, value, _ := strings.Cut(s, "=")
		if key == "" {
			return fmt.Errorf("options: malformed argument %q", arg)
		}
		o.Set(key, value)
	}
	return nil
}

// LoadYAML adds the options of the YAML document read from r. Nested mappings
// are flattened by joining the keys with an underscore, so
//
//	hpddm:
//	  tol: 1e-8
//
// sets "hpddm_tol".
func (o *Options) LoadYAML(r io.Reader) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("options: decoding yaml: %w", err)
	}
	return o.flatten("", doc)
}

func (o *Options) flatten(prefix string, m map[string]any) error {
	for k, v := range m {
		key := prefix + k
		switch v := v.(type) {
		case map[string]any:
			if err := o.flatten(key+"_", v); err != nil {
				return err
			}
		case []any:
			return fmt.Errorf("options: %s: sequences are not supported", key)
		case nil:
			o.Set(key, "")
		case float64:
			o.Set(key, strconv.FormatFloat(v, 'g', -1, 64))
		default:
			o.Set(key, fmt.Sprint(v))
		}
	}
	return nil
}
