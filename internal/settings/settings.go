// Package settings declares the application's configuration records and the
// standalone values injected at startup, and binds them from an Environment.
package settings

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/eugenenazirov/proptest/internal/binder"
	"github.com/eugenenazirov/proptest/internal/coerce"
	"github.com/eugenenazirov/proptest/internal/environment"
)

// Record prefixes.
const (
	PropTestPrefix = "schooldevops.prop-test"
	StudentPrefix  = "schooldevops.student"
	DBPrefix       = "db.maria"
)

// Default file names, loaded in this order.
var DefaultFiles = []string{"db.properties", "config.properties"}

var (
	// PropValueSchema binds schooldevops.prop-test.*.
	PropValueSchema = binder.NewSchema("PropValue",
		binder.String("name"),
		binder.List("friends"),
		binder.Map("cutline2", coerce.Int),
	)

	// StudentSchema binds schooldevops.student.user.* and .address.*.
	StudentSchema = binder.NewSchema("StudentPropValue",
		binder.Nested("user", binder.NewSchema("User",
			binder.String("name"),
			binder.Int("age"),
			binder.String("subject"),
		)),
		binder.Nested("address", binder.NewSchema("Address",
			binder.String("postNum"),
			binder.String("mainAddress"),
			binder.String("detailAddress"),
		)),
	)

	// DBSchema binds db.maria.*; the URL is mandatory.
	DBSchema = binder.NewSchema("DBPropValue",
		binder.String("url").Require(),
		binder.String("dbName"),
		binder.String("userName"),
		binder.String("password"),
	)
)

// PropValue holds the schooldevops.prop-test record.
type PropValue struct {
	Name     string         `mapstructure:"name"`
	Friends  []string       `mapstructure:"friends"`
	Cutline2 map[string]int `mapstructure:"cutline2"`
}

// User is the nested student user record.
type User struct {
	Name    string `mapstructure:"name"`
	Age     int    `mapstructure:"age"`
	Subject string `mapstructure:"subject"`
}

// Address is the nested student address record.
type Address struct {
	PostNum       string `mapstructure:"postNum"`
	MainAddress   string `mapstructure:"mainAddress"`
	DetailAddress string `mapstructure:"detailAddress"`
}

// StudentPropValue holds the schooldevops.student record.
type StudentPropValue struct {
	User    User    `mapstructure:"user"`
	Address Address `mapstructure:"address"`
}

// DBPropValue holds the db.maria record. The values are never used to open
// a connection.
type DBPropValue struct {
	URL      string `mapstructure:"url"`
	DBName   string `mapstructure:"dbName"`
	UserName string `mapstructure:"userName"`
	Password string `mapstructure:"password"`
}

// Injected holds values resolved one by one from placeholder expressions.
type Injected struct {
	ProjectName            string
	DefaultValue           string
	Friends                []string
	JavaVersion            string
	JavaVersionWithDefault string
	FriendList             []string
	Cutline                map[string]int
	DBURL                  string
	UserAPIURL             string
}

// Expressions behind the Injected fields.
const (
	ProjectNameExpr            = "${schooldevops.prop-test.name}"
	DefaultValueExpr           = "${schooldevops.prop-test.defaultValue:Hello Program}"
	FriendsExpr                = "${schooldevops.prop-test.friends}"
	JavaVersionExpr            = "#{systemProperties['java.version']}"
	JavaVersionWithDefaultExpr = "#{systemProperties['java.version.my'] ?: '11.0'}"
	FriendListExpr             = "#{'${schooldevops.prop-test.friends}'.split(',')}"
	CutlineExpr                = "#{${schooldevops.prop-test.cutline}}"
	DBURLExpr                  = "${db.maria.url}"
	UserAPIURLExpr             = "${api.user.url}"
)

// Settings is the bound, read-only configuration of the application.
type Settings struct {
	Injected Injected
	Prop     PropValue
	Student  StudentPropValue
	DB       DBPropValue

	records map[string]*binder.Record
}

// Load resolves every injected value and binds every record. The first
// failure aborts loading.
func Load(env *environment.Environment) (*Settings, error) {
	injected, err := loadInjected(env)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Injected: injected,
		records:  make(map[string]*binder.Record, 3),
	}

	bindings := []struct {
		name   string
		prefix string
		schema binder.Schema
		out    any
	}{
		{name: "propValue", prefix: PropTestPrefix, schema: PropValueSchema, out: &s.Prop},
		{name: "studentPropValue", prefix: StudentPrefix, schema: StudentSchema, out: &s.Student},
		{name: "dbPropValue", prefix: DBPrefix, schema: DBSchema, out: &s.DB},
	}
	for _, b := range bindings {
		rec, err := env.Bind(b.prefix, b.schema)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.name, err)
		}
		if err := rec.Decode(b.out); err != nil {
			return nil, err
		}
		s.records[b.name] = rec
	}

	return s, nil
}

func loadInjected(env *environment.Environment) (Injected, error) {
	var (
		in  Injected
		err error
	)

	scalars := []struct {
		expr string
		out  *string
	}{
		{ProjectNameExpr, &in.ProjectName},
		{DefaultValueExpr, &in.DefaultValue},
		{JavaVersionExpr, &in.JavaVersion},
		{JavaVersionWithDefaultExpr, &in.JavaVersionWithDefault},
		{DBURLExpr, &in.DBURL},
		{UserAPIURLExpr, &in.UserAPIURL},
	}
	for _, s := range scalars {
		if *s.out, err = env.Resolve(s.expr); err != nil {
			return Injected{}, fmt.Errorf("inject %s: %w", s.expr, err)
		}
	}

	if in.Friends, err = env.ResolveList(FriendsExpr); err != nil {
		return Injected{}, fmt.Errorf("inject %s: %w", FriendsExpr, err)
	}
	if in.FriendList, err = env.ResolveList(FriendListExpr); err != nil {
		return Injected{}, fmt.Errorf("inject %s: %w", FriendListExpr, err)
	}

	cutline, err := env.ResolveMap(CutlineExpr, coerce.Int)
	if err != nil {
		return Injected{}, fmt.Errorf("inject %s: %w", CutlineExpr, err)
	}
	in.Cutline = make(map[string]int, len(cutline))
	for k, v := range cutline {
		in.Cutline[k], _ = v.(int)
	}

	return in, nil
}

// Record returns a bound record by name.
func (s *Settings) Record(name string) (*binder.Record, bool) {
	rec, ok := s.records[name]
	return rec, ok
}

// RecordNames returns the names of all bound records in sorted order.
func (s *Settings) RecordNames() []string {
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var sensitiveKey = regexp.MustCompile(`(?i)(password|secret|token|credential)`)

// IsSensitive reports whether values under key should be masked.
func IsSensitive(key string) bool {
	return sensitiveKey.MatchString(key)
}

// Mask hides value when key is sensitive. Otherwise a password embedded in
// a URL's userinfo is redacted and the rest of the URL is kept.
func Mask(key, value string) string {
	if value == "" {
		return value
	}
	if IsSensitive(key) {
		return "******"
	}
	return redactURLPassword(value)
}

func redactURLPassword(value string) string {
	if !strings.Contains(value, "://") || !strings.Contains(value, "@") {
		return value
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return value
	}
	if _, ok := u.User.Password(); !ok {
		return value
	}
	return u.Redacted()
}
