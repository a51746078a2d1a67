package domain

// ServiceType classifies the document-processing work a lead asks for.
type ServiceType string

const (
	ServiceRentAgreement    ServiceType = "rent_agreement"
	ServiceDomicile         ServiceType = "domicile"
	ServiceIncomeCert       ServiceType = "income_certificate"
	ServiceBirthCert        ServiceType = "birth_certificate"
	ServiceDeathCert        ServiceType = "death_certificate"
	ServiceOther            ServiceType = "other"
)

var serviceLabels = map[ServiceType]string{
	ServiceRentAgreement: "Rent Agreement",
	ServiceDomicile:      "Domicile Certificate",
	ServiceIncomeCert:    "Income Certificate",
	ServiceBirthCert:     "Birth Certificate",
	ServiceDeathCert:     "Death Certificate",
	ServiceOther:         "Other Service",
}

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	_, ok := serviceLabels[t]
	return ok
}

// Label returns the human-readable name used in notification titles.
func (t ServiceType) Label() string {
	if label, ok := serviceLabels[t]; ok {
		return label
	}
	return string(t)
}
