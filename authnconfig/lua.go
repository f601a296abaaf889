package authnconfig

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/keksclan/goAuthn/authn"
	lua "github.com/yuin/gopher-lua"
)

// luaLoader loads config from a Lua file.
type luaLoader struct {
	path string
}

// FromLuaFile creates a Loader that reads config from a Lua file. The script
// must return a table:
//
//	return {
//	  issuer = "https://authn.example.com",
//	  audiences = { "myapp.example.com" },
//	  key_cache_ttl_minutes = 30,
//	}
func FromLuaFile(path string) Loader {
	return &luaLoader{path: path}
}

func (l *luaLoader) Load(_ context.Context) (*authn.Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read lua config file: %w", err)
	}
	return LoadLuaString(string(data))
}

// LoadLuaString runs script in a sandbox and maps the returned table.
func LoadLuaString(script string) (*authn.Config, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	// Only open safe libs for config parsing
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(pair.fn))
		L.Push(lua.LString(pair.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("lua config execution: %w", err)
	}

	ret := L.Get(-1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua config must return a table, got %s", ret.Type().String())
	}
	cfg := luaTableToConfig(tbl)
	return finish(cfg)
}

func luaTableToConfig(tbl *lua.LTable) *authn.Config {
	cfg := &authn.Config{
		Issuer:      getStringField(tbl, "issuer"),
		JWKSURL:     getStringField(tbl, "jwks_url"),
		AllowedAlgs: getStringSliceField(tbl, "allowed_algs"),
	}

	// audiences may be a string or a list
	if s := getStringField(tbl, "audiences"); s != "" {
		cfg.Audiences = []string{s}
	} else {
		cfg.Audiences = getStringSliceField(tbl, "audiences")
	}

	if ttl := getNumberField(tbl, "key_cache_ttl_minutes"); ttl > 0 {
		cfg.KeyCacheTTL = time.Duration(ttl * float64(time.Minute))
	}
	if ms := getNumberField(tbl, "fetch_timeout_ms"); ms > 0 {
		cfg.FetchTimeout = time.Duration(ms) * time.Millisecond
	}
	if skew := getNumberField(tbl, "clock_skew_sec"); skew > 0 {
		cfg.ClockSkew = time.Duration(skew) * time.Second
	}

	if jwksTbl := getTableField(tbl, "jwks"); jwksTbl != nil {
		if authTbl := getTableField(jwksTbl, "auth"); authTbl != nil {
			cfg.JWKS.Auth = authn.JWKSAuth{
				Kind:        authn.JWKSAuthKind(getStringField(authTbl, "kind")),
				Username:    getStringField(authTbl, "username"),
				Password:    getStringField(authTbl, "password"),
				BearerToken: getStringField(authTbl, "bearer_token"),
				HeaderName:  getStringField(authTbl, "header_name"),
				HeaderValue: getStringField(authTbl, "header_value"),
			}
		}
		cfg.JWKS.ExtraHeaders = getStringMapField(jwksTbl, "extra_headers")
	}
	return cfg
}

// Lua table helper functions

func getStringField(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

func getNumberField(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

func getTableField(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

func getStringSliceField(tbl *lua.LTable, key string) []string {
	t := getTableField(tbl, key)
	if t == nil {
		return nil
	}
	var result []string
	for i := 1; i <= t.Len(); i++ {
		if s, ok := t.RawGetInt(i).(lua.LString); ok {
			result = append(result, string(s))
		}
	}
	return result
}

func getStringMapField(tbl *lua.LTable, key string) map[string]string {
	t := getTableField(tbl, key)
	if t == nil {
		return nil
	}
	result := make(map[string]string)
	t.ForEach(func(k lua.LValue, val lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if vs, ok := val.(lua.LString); ok {
				result[string(ks)] = string(vs)
			}
		}
	})
	if len(result) == 0 {
		return nil
	}
	return result
}
