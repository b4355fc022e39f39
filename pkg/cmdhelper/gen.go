package cmdhelper

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Flags []Flag

type Flag struct {
	// e.g. foo
	Name string
	// With struct hierarchy prefix
	// e.g. prefix-foo
	FullName string

	// Enable env
	EnableEnv bool
	// With struct hierarchy prefix and the env prefix
	// e.g. TAHANI_PREFIX_FOO
	FullEnv string

	Split     string
	Shorthand string
	Usage     string

	Type    string
	Value   interface{}
	Pointer interface{}
}

// EnvPrefix is prepended to every generated env name.
var EnvPrefix = "TAHANI"

func resolveFieldName(field reflect.StructField) string {
	if name := field.Tag.Get("name"); name != "" {
		return name
	}
	return toSnake(field.Name)
}

var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")

func toSnake(name string) string {
	snake := matchFirstCap.ReplaceAllString(name, "${1}-${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}-${2}")
	return strings.ToLower(snake)
}

func resolveFlags(obj interface{}, flags Flags, namePrefix string) Flags {
	t := reflect.TypeOf(obj)
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		t = t.Elem()
	}

	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Struct {
		v = v.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Struct {
			// Embedded structs flatten into the parent, named ones prefix their fields.
			prefix := namePrefix
			if !field.Anonymous {
				prefix = genFullName(namePrefix, resolveFieldName(field))
			}
			flags = resolveFlags(v.Field(i).Addr().Interface(), flags, prefix)
			continue
		}

		tag := field.Tag
		flagType := tag.Get("type")
		if flagType == "" {
			continue
		}
		name := resolveFieldName(field)
		flag := Flag{
			Name:      name,
			FullName:  genFullName(namePrefix, name),
			Split:     tag.Get("split"),
			Shorthand: tag.Get("shorthand"),
			Usage:     tag.Get("usage"),
			Type:      flagType,
			Value:     v.Field(i).Interface(),
			Pointer:   v.Field(i).Addr().Interface(),
		}
		if enableEnv, _ := strconv.ParseBool(tag.Get("enable-env")); enableEnv {
			flag.EnableEnv = true
			flag.FullEnv = genEnv(flag.FullName)
		}
		flags = append(flags, flag)
	}
	return flags
}

func genFullName(namePrefix, name string) string {
	if namePrefix != "" {
		return namePrefix + "-" + name
	}
	return name
}

// genEnv replace "-" to "_", upper all character and add EnvPrefix
func genEnv(name string) string {
	env := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if EnvPrefix == "" {
		return env
	}
	return EnvPrefix + "_" + env
}

// ResolveFlagVariable registers the tagged fields of f as persistent flags of
// cmd, and fills them from the environment where enabled.
func ResolveFlagVariable(cmd *cobra.Command, f interface{}) {
	resolve(cmd.PersistentFlags(), f)
}

// ResolveLocalFlagVariable is ResolveFlagVariable for flags that only cmd
// itself accepts.
func ResolveLocalFlagVariable(cmd *cobra.Command, f interface{}) {
	resolve(cmd.Flags(), f)
}

func resolve(fs *pflag.FlagSet, f interface{}) {
	t := reflect.TypeOf(f)
	if t.Kind() != reflect.Ptr {
		panic("flag variable require pointer type")
	}

	flags := resolveFlags(f, nil, "")

	// Check full name conflict
	set := make(map[string]struct{})
	for _, v := range flags {
		if _, ok := set[v.FullName]; ok {
			panic(fmt.Sprintf("flag full name conflict, %s", v.FullName))
		}
		set[v.FullName] = struct{}{}
	}

	for _, v := range flags {
		register(fs, v)
	}

	for _, v := range flags {
		if !v.EnableEnv {
			continue
		}
		flag := fs.Lookup(v.FullName)
		if flag == nil {
			continue
		}
		if flag.Usage == "" {
			flag.Usage = fmt.Sprintf("[env %v]", v.FullEnv)
		} else {
			flag.Usage = fmt.Sprintf("%v [env %v]", flag.Usage, v.FullEnv)
		}
		value := os.Getenv(v.FullEnv)
		if value == "" {
			continue
		}
		values := []string{value}
		if v.Split != "" {
			values = strings.Split(value, v.Split)
		}
		for _, s := range values {
			if err := flag.Value.Set(s); err != nil {
				panic(fmt.Sprintf("invalid value %q for env %s: %v", s, v.FullEnv, err))
			}
		}
	}
}

func register(fs *pflag.FlagSet, v Flag) {
	switch v.Type {
	case "bool":
		fs.BoolVarP(v.Pointer.(*bool), v.FullName, v.Shorthand, v.Value.(bool), v.Usage)
	case "string":
		fs.StringVarP(v.Pointer.(*string), v.FullName, v.Shorthand, v.Value.(string), v.Usage)
	case "int":
		fs.IntVarP(v.Pointer.(*int), v.FullName, v.Shorthand, v.Value.(int), v.Usage)
	case "uint":
		fs.UintVarP(v.Pointer.(*uint), v.FullName, v.Shorthand, v.Value.(uint), v.Usage)
	case "duration":
		fs.DurationVarP(v.Pointer.(*time.Duration), v.FullName, v.Shorthand, v.Value.(time.Duration), v.Usage)
	case "string-slice":
		fs.StringSliceVarP(v.Pointer.(*[]string), v.FullName, v.Shorthand, v.Value.([]string), v.Usage)
	case "int-slice":
		fs.IntSliceVarP(v.Pointer.(*[]int), v.FullName, v.Shorthand, v.Value.([]int), v.Usage)
	case "string-to-string":
		fs.StringToStringVarP(v.Pointer.(*map[string]string), v.FullName, v.Shorthand, v.Value.(map[string]string), v.Usage)
	default:
		panic(fmt.Sprintf("not supported flag type: %s", v.Type))
	}
}
