package xsd

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// BuiltinType describes one of the built-in datatypes of XML Schema Part 2.
type BuiltinType struct {
	Name string
	// Base is the built-in type this one is derived from by restriction.
	Base string
	// Item is the item type of the built-in list types.
	Item       string
	WhiteSpace string
	// Check validates a whitespace-normalized lexical value. Checks of
	// base types run first, so Check only adds this type's own rule.
	Check func(value string) error
}

var builtinTypes = []*BuiltinType{
	{Name: "anySimpleType", WhiteSpace: WhiteSpacePreserve},

	{Name: "string", Base: "anySimpleType", WhiteSpace: WhiteSpacePreserve},
	{Name: "boolean", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkBoolean},
	{Name: "decimal", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkDecimal},
	{Name: "float", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkFloat(32)},
	{Name: "double", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkFloat(64)},
	{Name: "duration", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkDuration},
	{Name: "dateTime", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("dateTime")},
	{Name: "time", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("time")},
	{Name: "date", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("date")},
	{Name: "gYearMonth", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("gYearMonth")},
	{Name: "gYear", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("gYear")},
	{Name: "gMonthDay", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("gMonthDay")},
	{Name: "gDay", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("gDay")},
	{Name: "gMonth", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkTemporal("gMonth")},
	{Name: "hexBinary", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkHexBinary},
	{Name: "base64Binary", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkBase64Binary},
	{Name: "anyURI", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkAnyURI},
	{Name: "QName", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkQName},
	{Name: "NOTATION", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Check: checkQName},

	{Name: "normalizedString", Base: "string", WhiteSpace: WhiteSpaceReplace},
	{Name: "token", Base: "normalizedString", WhiteSpace: WhiteSpaceCollapse},
	{Name: "language", Base: "token", WhiteSpace: WhiteSpaceCollapse, Check: checkLanguage},
	{Name: "Name", Base: "token", WhiteSpace: WhiteSpaceCollapse, Check: checkName},
	{Name: "NCName", Base: "Name", WhiteSpace: WhiteSpaceCollapse, Check: validateNCName},
	{Name: "ID", Base: "NCName", WhiteSpace: WhiteSpaceCollapse},
	{Name: "IDREF", Base: "NCName", WhiteSpace: WhiteSpaceCollapse},
	{Name: "ENTITY", Base: "NCName", WhiteSpace: WhiteSpaceCollapse},
	{Name: "NMTOKEN", Base: "token", WhiteSpace: WhiteSpaceCollapse, Check: checkNMTOKEN},
	{Name: "IDREFS", Item: "IDREF", WhiteSpace: WhiteSpaceCollapse},
	{Name: "ENTITIES", Item: "ENTITY", WhiteSpace: WhiteSpaceCollapse},
	{Name: "NMTOKENS", Item: "NMTOKEN", WhiteSpace: WhiteSpaceCollapse},

	{Name: "integer", Base: "decimal", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(nil, nil)},
	{Name: "nonPositiveInteger", Base: "integer", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(nil, big.NewInt(0))},
	{Name: "negativeInteger", Base: "nonPositiveInteger", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(nil, big.NewInt(-1))},
	{Name: "long", Base: "integer", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(-1<<63), big.NewInt(1<<63-1))},
	{Name: "int", Base: "long", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(-1<<31), big.NewInt(1<<31-1))},
	{Name: "short", Base: "int", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(-1<<15), big.NewInt(1<<15-1))},
	{Name: "byte", Base: "short", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(-1<<7), big.NewInt(1<<7-1))},
	{Name: "nonNegativeInteger", Base: "integer", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(0), nil)},
	{Name: "unsignedLong", Base: "nonNegativeInteger", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(0), new(big.Int).SetUint64(1<<64-1))},
	{Name: "unsignedInt", Base: "unsignedLong", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(0), big.NewInt(1<<32-1))},
	{Name: "unsignedShort", Base: "unsignedInt", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(0), big.NewInt(1<<16-1))},
	{Name: "unsignedByte", Base: "unsignedShort", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(0), big.NewInt(1<<8-1))},
	{Name: "positiveInteger", Base: "nonNegativeInteger", WhiteSpace: WhiteSpaceCollapse, Check: checkInteger(big.NewInt(1), nil)},
}

var builtinSimpleTypes = map[string]*SimpleType{}

func init() {
	// The table lists every base before the types derived from it.
	for _, bt := range builtinTypes {
		st := &SimpleType{
			QName:      QName{Namespace: XSDNamespace, Local: bt.Name},
			WhiteSpace: bt.WhiteSpace,
			builtin:    bt,
			resolved:   true,
		}
		if bt.Base != "" {
			st.Base = builtinSimpleTypes[bt.Base]
		}
		if bt.Item != "" {
			st.Variety = ListVariety
			st.ItemType = builtinSimpleTypes[bt.Item]
		}
		builtinSimpleTypes[bt.Name] = st
	}
}

// builtinSimpleType returns the built-in simple type with the given local
// name in the XML Schema namespace, or nil.
func builtinSimpleType(name string) *SimpleType {
	return builtinSimpleTypes[name]
}

var (
	decimalPattern  = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	integerPattern  = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern    = regexp.MustCompile(`^([+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?|[+-]?INF|NaN)$`)
	durationPattern = regexp.MustCompile(`^-?P(\d+Y)?(\d+M)?(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
	languagePattern = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
)

func checkBoolean(value string) error {
	switch value {
	case "true", "false", "1", "0":
		return nil
	}
	return errors.New("expected true, false, 1 or 0")
}

func checkDecimal(value string) error {
	if !decimalPattern.MatchString(value) {
		return errors.New("expected a decimal number")
	}
	return nil
}

func checkFloat(bits int) func(string) error {
	return func(value string) error {
		if !floatPattern.MatchString(value) {
			return errors.New("expected a floating point number")
		}
		if strings.HasSuffix(value, "INF") || value == "NaN" {
			return nil
		}
		if _, err := strconv.ParseFloat(value, bits); err != nil {
			return errors.New("out of range")
		}
		return nil
	}
}

func checkInteger(min, max *big.Int) func(string) error {
	return func(value string) error {
		if !integerPattern.MatchString(value) {
			return errors.New("expected an integer")
		}
		n, _ := new(big.Int).SetString(strings.TrimPrefix(value, "+"), 10)
		if min != nil && n.Cmp(min) < 0 {
			return fmt.Errorf("must be at least %s", min)
		}
		if max != nil && n.Cmp(max) > 0 {
			return fmt.Errorf("must be at most %s", max)
		}
		return nil
	}
}

func checkDuration(value string) error {
	if !durationPattern.MatchString(value) || strings.HasSuffix(value, "P") || strings.HasSuffix(value, "T") {
		return errors.New("expected a duration such as P1Y2M3DT4H5M6S")
	}
	return nil
}

func checkTemporal(kind string) func(string) error {
	return func(value string) error {
		_, err := parseTemporal(kind, value)
		return err
	}
}

const timezone = `(?P<tz>Z|[+-]\d{2}:\d{2})?`

var temporalPatterns = map[string]*regexp.Regexp{
	"dateTime":   regexp.MustCompile(`^(?P<year>-?\d{4,})-(?P<month>\d{2})-(?P<day>\d{2})T(?P<hour>\d{2}):(?P<minute>\d{2}):(?P<second>\d{2}(\.\d+)?)` + timezone + `$`),
	"date":       regexp.MustCompile(`^(?P<year>-?\d{4,})-(?P<month>\d{2})-(?P<day>\d{2})` + timezone + `$`),
	"time":       regexp.MustCompile(`^(?P<hour>\d{2}):(?P<minute>\d{2}):(?P<second>\d{2}(\.\d+)?)` + timezone + `$`),
	"gYearMonth": regexp.MustCompile(`^(?P<year>-?\d{4,})-(?P<month>\d{2})` + timezone + `$`),
	"gYear":      regexp.MustCompile(`^(?P<year>-?\d{4,})` + timezone + `$`),
	"gMonthDay":  regexp.MustCompile(`^--(?P<month>\d{2})-(?P<day>\d{2})` + timezone + `$`),
	"gDay":       regexp.MustCompile(`^---(?P<day>\d{2})` + timezone + `$`),
	"gMonth":     regexp.MustCompile(`^--(?P<month>\d{2})` + timezone + `$`),
}

// parseTemporal parses a date or time value of the given primitive type.
// Fields the type does not carry default to 2000-01-01T00:00:00 and values
// without a timezone are taken as UTC.
func parseTemporal(kind, value string) (time.Time, error) {
	re, ok := temporalPatterns[kind]
	if !ok {
		return time.Time{}, fmt.Errorf("%s is not a date or time type", kind)
	}
	m := re.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid %s format", kind)
	}

	year, month, day := 2000, 1, 1
	hour, minute, second, nanos := 0, 0, 0, 0
	loc := time.UTC
	for i, name := range re.SubexpNames() {
		field := m[i]
		if name == "" || field == "" {
			continue
		}
		var err error
		switch name {
		case "year":
			digits := strings.TrimPrefix(field, "-")
			if len(digits) > 4 && digits[0] == '0' {
				return time.Time{}, errors.New("year has leading zeros")
			}
			year, err = strconv.Atoi(field)
			if err == nil && year == 0 {
				err = errors.New("year 0000 is not allowed")
			}
		case "month":
			month, err = strconv.Atoi(field)
		case "day":
			day, err = strconv.Atoi(field)
		case "hour":
			hour, err = strconv.Atoi(field)
		case "minute":
			minute, err = strconv.Atoi(field)
		case "second":
			whole, frac, _ := strings.Cut(field, ".")
			second, err = strconv.Atoi(whole)
			if len(frac) > 9 {
				frac = frac[:9]
			}
			if frac != "" {
				nanos, _ = strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
			}
		case "tz":
			loc, err = parseTimezone(field)
		}
		if err != nil {
			return time.Time{}, err
		}
	}

	switch {
	case month < 1 || month > 12:
		return time.Time{}, fmt.Errorf("month %02d is out of range", month)
	case day < 1 || day > daysIn(year, month):
		return time.Time{}, fmt.Errorf("day %02d is out of range", day)
	case hour > 24 || minute > 59 || second > 59:
		return time.Time{}, errors.New("time is out of range")
	case hour == 24 && (minute != 0 || second != 0 || nanos != 0):
		return time.Time{}, errors.New("hour 24 is only allowed as 24:00:00")
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, nanos, loc), nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func parseTimezone(tz string) (*time.Location, error) {
	if tz == "Z" {
		return time.UTC, nil
	}
	hours, _ := strconv.Atoi(tz[1:3])
	minutes, _ := strconv.Atoi(tz[4:6])
	if minutes > 59 || hours > 14 || (hours == 14 && minutes > 0) {
		return nil, fmt.Errorf("timezone %s is out of range", tz)
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone("", offset), nil
}

func checkHexBinary(value string) error {
	if _, err := hex.DecodeString(value); err != nil {
		return errors.New("expected an even number of hexadecimal digits")
	}
	return nil
}

func checkBase64Binary(value string) error {
	if _, err := base64.StdEncoding.DecodeString(strings.Join(splitXMLSpace(value), "")); err != nil {
		return errors.New("expected base64 encoded data")
	}
	return nil
}

func checkAnyURI(value string) error {
	if _, err := url.Parse(value); err != nil {
		return errors.New("expected a URI reference")
	}
	return nil
}

func checkQName(value string) error {
	prefix, local, found := strings.Cut(value, ":")
	if !found {
		return validateNCName(prefix)
	}
	if err := validateNCName(prefix); err != nil {
		return err
	}
	return validateNCName(local)
}

func checkLanguage(value string) error {
	if !languagePattern.MatchString(value) {
		return errors.New("expected a language tag such as en-US")
	}
	return nil
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == ':'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == 0xB7 ||
		unicode.In(r, unicode.Mn, unicode.Mc)
}

func checkName(value string) error {
	if value == "" {
		return errors.New("name cannot be empty")
	}
	for i, r := range value {
		if i == 0 && !isNameStart(r) {
			return fmt.Errorf("name cannot start with '%c'", r)
		}
		if !isNameChar(r) {
			return fmt.Errorf("invalid name character '%c'", r)
		}
	}
	return nil
}

func validateNCName(value string) error {
	if err := checkName(value); err != nil {
		return err
	}
	if strings.ContainsRune(value, ':') {
		return errors.New("name cannot contain ':'")
	}
	return nil
}

func checkNMTOKEN(value string) error {
	if value == "" {
		return errors.New("token cannot be empty")
	}
	for _, r := range value {
		if !isNameChar(r) {
			return fmt.Errorf("invalid name character '%c'", r)
		}
	}
	return nil
}
