package hqmf

import (
	"encoding/json"
	"strings"
)

// DefinitionKind is the closed set of clinical categories a data criterion
// can resolve to.
type DefinitionKind int

const (
	DefinitionNone DefinitionKind = iota
	// DefinitionUnknown is a definition outside the known set; its raw code
	// is kept in Definition.Raw.
	DefinitionUnknown
	DefinitionAdverseEvent
	DefinitionAllergyIntolerance
	DefinitionAssessment
	DefinitionCareGoal
	DefinitionCommunication
	DefinitionDerived
	DefinitionDevice
	DefinitionDiagnosis
	DefinitionDiagnosticStudy
	DefinitionEncounter
	DefinitionFamilyHistory
	DefinitionFunctionalStatus
	DefinitionImmunization
	DefinitionIntervention
	DefinitionLaboratoryTest
	DefinitionMedication
	DefinitionPatientCareExperience
	DefinitionPatientCharacteristic
	DefinitionPatientCharacteristicAge
	DefinitionPatientCharacteristicBirthdate
	DefinitionPatientCharacteristicClinicalTrialParticipant
	DefinitionPatientCharacteristicEthnicity
	DefinitionPatientCharacteristicExpired
	DefinitionPatientCharacteristicGender
	DefinitionPatientCharacteristicLanguages
	DefinitionPatientCharacteristicMaritalStatus
	DefinitionPatientCharacteristicPayer
	DefinitionPatientCharacteristicRace
	DefinitionPhysicalExam
	DefinitionProcedure
	DefinitionProviderCareExperience
	DefinitionRiskCategoryAssessment
	DefinitionSatisfiesAll
	DefinitionSatisfiesAny
	DefinitionSubstance
	DefinitionSymptom
	DefinitionTransferFrom
	DefinitionTransferTo
	DefinitionVariable
)

var definitionNames = map[DefinitionKind]string{
	DefinitionAdverseEvent:                                 "adverse_event",
	DefinitionAllergyIntolerance:                           "allergy_intolerance",
	DefinitionAssessment:                                   "assessment",
	DefinitionCareGoal:                                     "care_goal",
	DefinitionCommunication:                                "communication",
	DefinitionDerived:                                      "derived",
	DefinitionDevice:                                       "device",
	DefinitionDiagnosis:                                    "diagnosis",
	DefinitionDiagnosticStudy:                              "diagnostic_study",
	DefinitionEncounter:                                    "encounter",
	DefinitionFamilyHistory:                                "family_history",
	DefinitionFunctionalStatus:                             "functional_status",
	DefinitionImmunization:                                 "immunization",
	DefinitionIntervention:                                 "intervention",
	DefinitionLaboratoryTest:                               "laboratory_test",
	DefinitionMedication:                                   "medication",
	DefinitionPatientCareExperience:                        "patient_care_experience",
	DefinitionPatientCharacteristic:                        "patient_characteristic",
	DefinitionPatientCharacteristicAge:                     "patient_characteristic_age",
	DefinitionPatientCharacteristicBirthdate:               "patient_characteristic_birthdate",
	DefinitionPatientCharacteristicClinicalTrialParticipant: "patient_characteristic_clinical_trial_participant",
	DefinitionPatientCharacteristicEthnicity:               "patient_characteristic_ethnicity",
	DefinitionPatientCharacteristicExpired:                 "patient_characteristic_expired",
	DefinitionPatientCharacteristicGender:                  "patient_characteristic_gender",
	DefinitionPatientCharacteristicLanguages:               "patient_characteristic_languages",
	DefinitionPatientCharacteristicMaritalStatus:           "patient_characteristic_marital_status",
	DefinitionPatientCharacteristicPayer:                   "patient_characteristic_payer",
	DefinitionPatientCharacteristicRace:                    "patient_characteristic_race",
	DefinitionPhysicalExam:                                 "physical_exam",
	DefinitionProcedure:                                    "procedure",
	DefinitionProviderCareExperience:                       "provider_care_experience",
	DefinitionRiskCategoryAssessment:                       "risk_category_assessment",
	DefinitionSatisfiesAll:                                 "satisfies_all",
	DefinitionSatisfiesAny:                                 "satisfies_any",
	DefinitionSubstance:                                    "substance",
	DefinitionSymptom:                                      "symptom",
	DefinitionTransferFrom:                                 "transfer_from",
	DefinitionTransferTo:                                   "transfer_to",
	DefinitionVariable:                                     "variable",
}

var definitionsByName = func() map[string]DefinitionKind {
	m := make(map[string]DefinitionKind, len(definitionNames))
	for k, name := range definitionNames {
		m[name] = k
	}
	return m
}()

// Definition is the resolved clinical category of a criterion. The zero
// value means the category has not been resolved.
type Definition struct {
	Kind DefinitionKind
	Raw  string
}

// Def returns the Definition of a known kind.
func Def(kind DefinitionKind) Definition {
	return Definition{Kind: kind}
}

// ParseDefinition maps a definition name to its kind. Names outside the
// known set produce DefinitionUnknown carrying the raw code.
func ParseDefinition(name string) Definition {
	if name == "" {
		return Definition{}
	}
	if kind, ok := definitionsByName[name]; ok {
		return Definition{Kind: kind}
	}
	return Definition{Kind: DefinitionUnknown, Raw: name}
}

// IsKnownDefinition reports whether name is one of the known kinds.
func IsKnownDefinition(name string) bool {
	_, ok := definitionsByName[name]
	return ok
}

func (d Definition) String() string {
	if d.Kind == DefinitionUnknown {
		return d.Raw
	}
	return definitionNames[d.Kind]
}

func (d Definition) IsZero() bool {
	return d.Kind == DefinitionNone
}

func (d Definition) Is(kind DefinitionKind) bool {
	return d.Kind == kind
}

func (d Definition) IsPatientCharacteristic() bool {
	return strings.HasPrefix(d.String(), "patient_characteristic")
}

func (d Definition) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	var name *string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if name == nil {
		*d = Definition{}
		return nil
	}
	*d = ParseDefinition(*name)
	return nil
}
