package xsd

import (
	"errors"
	"strings"
	"testing"
)

func TestBuiltinTypes(t *testing.T) {
	tests := []struct {
		typ   string
		value string
		valid bool
	}{
		{"string", "  anything goes ", true},
		{"boolean", "true", true},
		{"boolean", " 0 ", true},
		{"boolean", "yes", false},
		{"decimal", "-12.50", true},
		{"decimal", ".5", true},
		{"decimal", "1e3", false},
		{"integer", "+42", true},
		{"integer", "4.2", false},
		{"int", "2147483647", true},
		{"int", "2147483648", false},
		{"byte", "-129", false},
		{"unsignedByte", "255", true},
		{"unsignedByte", "-1", false},
		{"nonNegativeInteger", "0", true},
		{"positiveInteger", "0", false},
		{"negativeInteger", "-1", true},
		{"unsignedLong", "18446744073709551615", true},
		{"unsignedLong", "18446744073709551616", false},
		{"float", "INF", true},
		{"float", "1.5E3", true},
		{"float", "1e39", false},
		{"double", "NaN", true},
		{"double", "abc", false},
		{"date", "2024-02-29", true},
		{"date", "2023-02-29", false},
		{"date", "2024-13-01", false},
		{"date", "2024-01-15Z", true},
		{"date", "2024-01-15+15:00", false},
		{"dateTime", "2024-01-15T10:30:00.123-05:00", true},
		{"dateTime", "2024-01-15T24:00:00", true},
		{"dateTime", "2024-01-15T24:30:00", false},
		{"dateTime", "2024-01-15", false},
		{"time", "23:59:59", true},
		{"time", "23:60:00", false},
		{"gYear", "2024", true},
		{"gYear", "0000", false},
		{"gYearMonth", "2024-06", true},
		{"gMonthDay", "--02-29", true},
		{"gMonthDay", "--02-30", false},
		{"gDay", "---31", true},
		{"gMonth", "--12", true},
		{"duration", "P1Y2M3DT4H5M6.5S", true},
		{"duration", "-PT1H", true},
		{"duration", "P", false},
		{"duration", "P1DT", false},
		{"hexBinary", "0FB7", true},
		{"hexBinary", "0FB", false},
		{"base64Binary", "aGVsbG8=", true},
		{"base64Binary", "aGVsbG8", false},
		{"anyURI", "http://example.com/a?b=c", true},
		{"QName", "tml:model", true},
		{"QName", "a:b:c", false},
		{"NCName", "model", true},
		{"NCName", "tml:model", false},
		{"NCName", "1model", false},
		{"ID", "_id-1", true},
		{"Name", "xml:lang", true},
		{"NMTOKEN", "2024-01", true},
		{"NMTOKEN", "a b", false},
		{"NMTOKENS", " a  b c ", true},
		{"NMTOKENS", "   ", false},
		{"IDREFS", "a b", true},
		{"language", "en-US", true},
		{"language", "en_US", false},
		{"token", " collapsed   value ", true},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.value, func(t *testing.T) {
			st := builtinSimpleType(tt.typ)
			if st == nil {
				t.Fatalf("built-in type %s not found", tt.typ)
			}
			err := st.Validate(tt.value)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be a valid %s, got %v", tt.value, tt.typ, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be an invalid %s", tt.value, tt.typ)
			}
		})
	}
}

func TestBuiltinErrorNamesMostSpecificType(t *testing.T) {
	err := builtinSimpleType("int").Validate("abc")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "xs:int") {
		t.Errorf("error %q should name xs:int", err.Error())
	}
}

func TestNormalizeWhiteSpace(t *testing.T) {
	tests := []struct {
		mode  string
		value string
		want  string
	}{
		{WhiteSpacePreserve, " a\tb\n", " a\tb\n"},
		{WhiteSpaceReplace, " a\tb\n", " a b "},
		{WhiteSpaceCollapse, "  a \t\n b  ", "a b"},
		{WhiteSpaceCollapse, "", ""},
	}
	for _, tt := range tests {
		if got := normalizeWhiteSpace(tt.value, tt.mode); got != tt.want {
			t.Errorf("normalizeWhiteSpace(%q, %s) = %q, want %q", tt.value, tt.mode, got, tt.want)
		}
	}
}

func TestParseTemporalOrdering(t *testing.T) {
	tests := []struct {
		kind string
		a, b string
		want int
	}{
		{"dateTime", "2024-01-15T10:00:00Z", "2024-01-15T05:00:00-05:00", 0},
		{"dateTime", "2024-01-15T10:00:00Z", "2024-01-15T10:00:01Z", -1},
		{"date", "2024-03-01", "2024-02-29", 1},
		{"time", "12:00:00.5", "12:00:00.25", 1},
		{"gYear", "-0001", "0001", -1},
	}
	for _, tt := range tests {
		x, err := parseTemporal(tt.kind, tt.a)
		if err != nil {
			t.Fatalf("parseTemporal(%s, %q): %v", tt.kind, tt.a, err)
		}
		y, err := parseTemporal(tt.kind, tt.b)
		if err != nil {
			t.Fatalf("parseTemporal(%s, %q): %v", tt.kind, tt.b, err)
		}
		if got := x.Compare(y); got != tt.want {
			t.Errorf("%s: compare(%q, %q) = %d, want %d", tt.kind, tt.a, tt.b, got, tt.want)
		}
	}
}

const facetSchema = `<xs:simpleType name="Percent">
		<xs:restriction base="xs:decimal">
			<xs:minInclusive value="0"/>
			<xs:maxInclusive value="100"/>
			<xs:fractionDigits value="2"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="SmallPercent">
		<xs:restriction base="t:Percent">
			<xs:maxExclusive value="10"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Code">
		<xs:restriction base="xs:string">
			<xs:pattern value="[A-Z]{2}\d{2}"/>
			<xs:pattern value="X+"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Grade">
		<xs:restriction base="xs:token">
			<xs:enumeration value="low"/>
			<xs:enumeration value="high"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Name">
		<xs:restriction base="xs:string">
			<xs:minLength value="2"/>
			<xs:maxLength value="4"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Digest">
		<xs:restriction base="xs:hexBinary">
			<xs:length value="2"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Amount">
		<xs:restriction base="xs:decimal">
			<xs:totalDigits value="4"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Sizes">
		<xs:list itemType="xs:positiveInteger"/>
	</xs:simpleType>
	<xs:simpleType name="TwoSizes">
		<xs:restriction base="t:Sizes">
			<xs:length value="2"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="SizeOrAuto">
		<xs:union memberTypes="xs:positiveInteger">
			<xs:simpleType>
				<xs:restriction base="xs:string">
					<xs:enumeration value="auto"/>
				</xs:restriction>
			</xs:simpleType>
		</xs:union>
	</xs:simpleType>
	<xs:simpleType name="Float1">
		<xs:restriction base="xs:double">
			<xs:enumeration value="1.0"/>
		</xs:restriction>
	</xs:simpleType>
	<xs:simpleType name="Recent">
		<xs:restriction base="xs:date">
			<xs:minExclusive value="2000-01-01"/>
		</xs:restriction>
	</xs:simpleType>`

func TestFacets(t *testing.T) {
	schema, err := Compile(strings.NewReader(schemaWith(facetSchema)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		typ       string
		value     string
		wantFacet string
		wantValid bool
	}{
		{"Percent", "99.99", "", true},
		{"Percent", "100", "", true},
		{"Percent", "100.01", "maxInclusive", false},
		{"Percent", "-1", "minInclusive", false},
		{"Percent", "1.125", "fractionDigits", false},
		{"Percent", "1.500", "", true},
		{"SmallPercent", "9.5", "", true},
		{"SmallPercent", "10", "maxExclusive", false},
		{"SmallPercent", "101", "maxInclusive", false},
		{"Code", "AB12", "", true},
		{"Code", "XXX", "", true},
		{"Code", "ab12", "pattern", false},
		{"Code", "AB12 ", "pattern", false},
		{"Grade", "  high ", "", true},
		{"Grade", "medium", "enumeration", false},
		{"Name", "abc", "", true},
		{"Name", "a", "minLength", false},
		{"Name", "abcde", "maxLength", false},
		{"Name", "äöü", "", true},
		{"Digest", "0A0B", "", true},
		{"Digest", "0A", "length", false},
		{"Amount", "12.34", "", true},
		{"Amount", "0012.340", "", true},
		{"Amount", "123.45", "totalDigits", false},
		{"Sizes", "1 2 3", "", true},
		{"Sizes", "1 0", "", false},
		{"TwoSizes", "4 5", "", true},
		{"TwoSizes", "4 5 6", "length", false},
		{"SizeOrAuto", "auto", "", true},
		{"SizeOrAuto", "12", "", true},
		{"SizeOrAuto", "none", "", false},
		{"Float1", "1", "", true},
		{"Float1", "1e0", "", true},
		{"Float1", "2", "enumeration", false},
		{"Recent", "2000-01-02", "", true},
		{"Recent", "2000-01-01", "minExclusive", false},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.value, func(t *testing.T) {
			typ, ok := schema.LookupType(QName{Namespace: "urn:test", Local: tt.typ})
			if !ok {
				t.Fatalf("type %s not found", tt.typ)
			}
			err := typ.(*SimpleType).Validate(tt.value)
			if tt.wantValid {
				if err != nil {
					t.Errorf("expected %q to be valid, got %v", tt.value, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %q to be invalid", tt.value)
			}
			if tt.wantFacet == "" {
				return
			}
			var fe *FacetError
			if !errors.As(err, &fe) {
				t.Fatalf("expected a *FacetError, got %T: %v", err, err)
			}
			if fe.Facet != tt.wantFacet {
				t.Errorf("facet = %s, want %s (%v)", fe.Facet, tt.wantFacet, err)
			}
		})
	}
}

func TestTranslateRegex(t *testing.T) {
	tests := []struct {
		pattern string
		match   []string
		reject  []string
	}{
		{`\d{3}`, []string{"123", "٣٤٥"}, []string{"12", "12a"}},
		{`.*\S.*`, []string{"a", "  b  "}, []string{"", "   "}},
		{`[\i-[:]][\c-[:]]*`, nil, nil},
		{`\i\c*`, []string{"model", "_x.y-z"}, []string{"1abc"}},
		{`a^b$`, []string{"a^b$"}, []string{"ab"}},
		{`[^\s]+`, []string{"abc"}, []string{"a b"}},
		{`\p{Lu}+`, []string{"ABC"}, []string{"AbC"}},
		{`(ab|cd)+`, []string{"abcd"}, []string{"abc"}},
		{`a.b`, []string{"a-b"}, []string{"a\nb"}},
		{`[a\-z]`, []string{"-"}, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			f, err := NewPatternFacet(tt.pattern)
			if tt.match == nil && tt.reject == nil {
				if err == nil {
					t.Fatalf("expected %q to be rejected", tt.pattern)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPatternFacet(%q): %v", tt.pattern, err)
			}
			for _, s := range tt.match {
				if err := f.Validate(s, nil); err != nil {
					t.Errorf("%q should match %q: %v", tt.pattern, s, err)
				}
			}
			for _, s := range tt.reject {
				if err := f.Validate(s, nil); err == nil {
					t.Errorf("%q should not match %q", tt.pattern, s)
				}
			}
		})
	}
}
