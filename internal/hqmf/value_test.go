package hqmf

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func valueEntry(t *testing.T, value string) *DataCriterion {
	t.Helper()
	entries := parseEntries(t, `
      <entry>
        <observationCriteria>
          <id root="1" extension="Obs"/>
          `+value+`
        </observationCriteria>
      </entry>`)
	return &DataCriterion{entry: entries[0]}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want Value
	}{
		{
			name: "absent",
			xml:  ``,
			want: nil,
		},
		{
			name: "untyped",
			xml:  `<value value="3"/>`,
			want: nil,
		},
		{
			name: "any non null flavor",
			xml:  `<value flavorId="ANY.NONNULL"/>`,
			want: &AnyValue{Type: "ANYNonNull"},
		},
		{
			name: "physical quantity",
			xml:  `<value xsi:type="PQ" value="7" unit="days"/>`,
			want: &Simple{Type: "PQ", Value: "7", Unit: "d", Inclusive: true},
		},
		{
			name: "timestamp",
			xml:  `<value xsi:type="TS" value="20120101"/>`,
			want: &Simple{Type: "TS", Value: "20120101"},
		},
		{
			name: "quantity interval",
			xml:  `<value xsi:type="IVL_PQ" lowClosed="true"><low value="18" unit="a"/><high value="64" unit="a"/></value>`,
			want: &Range{
				Type: "IVL_PQ",
				Low:  &Simple{Type: "PQ", Value: "18", Unit: "a", Inclusive: true},
				High: &Simple{Type: "PQ", Value: "64", Unit: "a"},
			},
		},
		{
			name: "equal bounds are inclusive",
			xml:  `<value xsi:type="IVL_INT"><low value="2"/><high value="2"/></value>`,
			want: &Range{
				Type: "IVL_INT",
				Low:  &Simple{Type: "PQ", Value: "2", Inclusive: true},
				High: &Simple{Type: "PQ", Value: "2", Inclusive: true},
			},
		},
		{
			name: "coded",
			xml:  `<value xsi:type="CD" code="F" codeSystem="2.16.840.1.113883.5.1" valueSet="1.2.3"><displayName value="Female"/></value>`,
			want: &Coded{Type: "CD", System: "2.16.840.1.113883.5.1", Code: "F", ValueSet: "1.2.3", DisplayName: "Female"},
		},
		{
			name: "any",
			xml:  `<value xsi:type="ANY"/>`,
			want: &AnyValue{Type: "ANYNonNull"},
		},
		{
			name: "timestamp interval",
			xml:  `<value xsi:type="IVL_TS"><low value="2012"/></value>`,
			want: &AnyValue{Type: "ANYNonNull"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valueEntry(t, tt.xml)
			got, err := parseValue(c.entry, "./*/cda:value")
			if err != nil {
				t.Fatalf("parseValue: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseValue_UnknownTypeIsFatal(t *testing.T) {
	c := valueEntry(t, `<value xsi:type="XX" value="1"/>`)
	if _, err := parseValue(c.entry, "./*/cda:value"); err == nil || !strings.Contains(err.Error(), "XX") {
		t.Fatalf("parseValue err = %v, want unknown value type naming XX", err)
	}

	err := extractErr(t, `
      <entry>
        <observationCriteria>
          <id root="1" extension="Obs"/>
          <value xsi:type="XX" value="1"/>
        </observationCriteria>
      </entry>`)
	if !errors.Is(err, ErrFatalData) {
		t.Errorf("err = %v, want fatal", err)
	}
	if !strings.Contains(err.Error(), "unknown value type [XX]") {
		t.Errorf("err = %q does not name the type", err)
	}
}

func TestExtractFieldValues(t *testing.T) {
	entries := parseEntries(t, `
      <entry>
        <encounterCriteria>
          <id root="1" extension="Enc"/>
          <outboundRelationship typeCode="REFR">
            <observationCriteria>
              <code code="183797002"/>
              <value xsi:type="IVL_PQ"><low value="120" unit="days"/></value>
            </observationCriteria>
          </outboundRelationship>
          <outboundRelationship typeCode="RSON">
            <observationCriteria>
              <code code="410666004"/>
              <value xsi:type="CD" valueSet="reason-vs"/>
            </observationCriteria>
          </outboundRelationship>
          <outboundRelationship typeCode="REFR">
            <observationCriteria>
              <code code="399423000"/>
              <effectiveTime xsi:type="TS" value="2012"/>
            </observationCriteria>
          </outboundRelationship>
          <outboundRelationship typeCode="REFR">
            <encounterCriteria>
              <participation typeCode="LOC">
                <role classCode="SDLOC"><code valueSet="icu-vs"/></role>
              </participation>
            </encounterCriteria>
          </outboundRelationship>
          <outboundRelationship typeCode="FLFS">
            <criteriaReference classCode="OBS" moodCode="EVN"><id root="1" extension="Order"/></criteriaReference>
          </outboundRelationship>
          <outboundRelationship typeCode="REFR">
            <observationCriteria>
              <code code="999999"/>
              <value xsi:type="CD" valueSet="ignored"/>
            </observationCriteria>
          </outboundRelationship>
        </encounterCriteria>
      </entry>`)

	fields, err := extractFieldValues(entries[0], false)
	if err != nil {
		t.Fatalf("extractFieldValues: %v", err)
	}
	want := map[string]Value{
		"LENGTH_OF_STAY": &Range{
			Type: "IVL_PQ",
			Low:  &Simple{Type: "PQ", Value: "120", Unit: "d"},
		},
		"REASON":             &Coded{Type: "CD", ValueSet: "reason-vs"},
		"ADMISSION_DATETIME": &Simple{Type: "TS", Value: "2012"},
		"FACILITY_LOCATION":  &Coded{Type: "CD", ValueSet: "icu-vs"},
		"FLFS":               &TypedReference{Type: "OBS", Mood: "EVN", Reference: "Order_1"},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	negated, err := extractFieldValues(entries[0], true)
	if err != nil {
		t.Fatalf("extractFieldValues: %v", err)
	}
	if _, ok := negated["REASON"]; ok {
		t.Error("negated criterion kept its REASON field")
	}
}

func TestExtractFieldValues_None(t *testing.T) {
	c := valueEntry(t, ``)
	fields, err := extractFieldValues(c.entry, false)
	if err != nil || fields != nil {
		t.Errorf("fields = %v, %v; want nil", fields, err)
	}
}

func TestValueEnvelope(t *testing.T) {
	for _, v := range []Value{
		&Simple{Type: "PQ", Value: "1", Unit: "a"},
		&Range{Type: "IVL_PQ", High: &Simple{Type: "PQ", Value: "3"}},
		&Coded{Type: "CD", ValueSet: "vs"},
		&AnyValue{Type: "ANYNonNull"},
		&TypedReference{Type: "OBS", Reference: "Order_1"},
	} {
		raw, err := MarshalValue(v)
		if err != nil {
			t.Fatalf("MarshalValue(%T): %v", v, err)
		}
		got, err := DecodeValue(raw)
		if err != nil {
			t.Fatalf("DecodeValue(%s): %v", raw, err)
		}
		if diff := cmp.Diff(v, got); diff != "" {
			t.Errorf("%T mismatch (-want +got):\n%s", v, diff)
		}
	}

	if _, err := DecodeValue([]byte(`{"kind":"bogus","data":{}}`)); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}
