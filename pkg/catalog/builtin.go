package catalog

var (
	yesNo   = []string{"Yes", "No"}
	yesNoNA = []string{"Yes", "No", "Not Applicable"}
)

// q builds a plain question answered Yes/No/Not Applicable.
func q(id, text, def string) Question {
	return Question{ID: id, Text: text, Options: yesNoNA, DefaultAnswer: def, Priority: 100}
}

// anchor builds an anchor question.
func anchor(id string, priority int, text, explanation string, options []string, def string) Question {
	return Question{
		ID:            id,
		Text:          text,
		Options:       options,
		IsAnchor:      true,
		DefaultAnswer: def,
		Priority:      priority,
		Explanation:   explanation,
	}
}

// gated marks q as belonging to the cluster controlled by gate.
func gated(gate string, qs ...Question) []Question {
	for i := range qs {
		qs[i].GatingQuestionID = gate
	}
	return qs
}

// Builtin returns the built-in vendor security and compliance questionnaire.
func Builtin() *Catalog {
	var qs []Question

	// 1 Company and governance
	qs = append(qs,
		q("1.1", "Do you maintain a documented information security policy approved by management?", "Yes"),
		anchor("1.2", 9, "Do you hold a current third-party security certification (e.g. ISO 27001 or SOC 2 Type II)?",
			"certifications let reviewers accept most governance controls as evidenced", yesNo, "Yes"),
		q("1.3", "Is the security policy reviewed at least annually?", "Yes"),
		q("1.4", "Is there a named individual accountable for information security?", "Yes"),
		q("1.5", "Do all employees complete security awareness training on hire and annually?", "Yes"),
		q("1.6", "Are background checks performed for staff with access to customer data?", "Yes"),
		q("1.7", "Do you maintain a risk register reviewed by leadership?", "Yes"),
		q("1.8", "Do employees sign confidentiality agreements?", "Yes"),
	)

	// 2 Data scope
	qs = append(qs,
		q("2.1", "Do you maintain an inventory of the data categories you process for customers?", "Yes"),
		q("2.2", "Is customer data logically segregated between tenants?", "Yes"),
		q("2.3", "Is customer data encrypted in transit using TLS 1.2 or later?", "Yes"),
		q("2.4", "Is customer data encrypted at rest?", "Yes"),
		q("2.5", "Do you have a documented data retention and deletion procedure?", "Yes"),
		anchor("2.6", 1, "Does the service store or process personal data of the customer's users or employees?",
			"the answer decides whether the privacy and data protection section applies", yesNoNA, "Yes"),
		q("2.7", "Can customers export their data on request?", "Yes"),
		q("2.8", "Is production data prohibited from use in non-production environments?", "Yes"),
	)

	// 3 Access control
	qs = append(qs,
		q("3.1", "Is multi-factor authentication enforced for administrative access?", "Yes"),
		q("3.2", "Is access granted on a least-privilege basis?", "Yes"),
		q("3.3", "Are access rights reviewed at least quarterly?", "Yes"),
		q("3.4", "Is access revoked within 24 hours of termination?", "Yes"),
		q("3.5", "Are shared or generic accounts prohibited?", "Yes"),
		q("3.6", "Is single sign-on supported for customer accounts?", "Yes"),
		q("3.7", "Are privileged actions logged and monitored?", "Yes"),
	)

	// 4 Privacy and data protection, gated by 2.6
	qs = append(qs, gated("2.6",
		q("4.1", "Do you have a designated privacy officer or DPO?", "Yes"),
		q("4.2", "Do you publish a privacy notice describing processing of personal data?", "Yes"),
		q("4.3", "Can you sign a data processing agreement with the customer?", "Yes"),
		q("4.4", "Do you support data subject access and deletion requests?", "Yes"),
		q("4.5", "Is personal data transferred outside its region of collection?", "No"),
		q("4.6", "Are transfer mechanisms (e.g. SCCs) in place for cross-border transfers?", "Yes"),
		q("4.7", "Do you perform privacy impact assessments for new processing?", "Yes"),
		q("4.8", "Is personal data pseudonymised or minimised where possible?", "Yes"),
	)...)

	// 5 Hosting and infrastructure
	qs = append(qs,
		anchor("5.1", 7, "Is the service hosted on a third-party cloud provider?",
			"cloud hosting moves infrastructure controls to the provider's shared responsibility model",
			yesNo, "Yes"),
	)
	qs = append(qs, gated("5.1",
		q("5.2", "Do you review the cloud provider's SOC 2 or ISO 27001 report annually?", "Yes"),
		q("5.3", "Are cloud resources deployed in more than one availability zone?", "Yes"),
		q("5.4", "Is infrastructure defined as code and peer reviewed?", "Yes"),
		q("5.5", "Are cloud security posture findings monitored continuously?", "Yes"),
		q("5.6", "Are cloud root or owner credentials locked away and monitored?", "Yes"),
	)...)

	// 6 Application security
	qs = append(qs,
		anchor("6.1", 10, "Do you develop the software you provide in-house?",
			"in-house development brings the secure development lifecycle into scope", yesNo, "Yes"),
		q("6.2", "Is all code peer reviewed before merge?", "Yes"),
		q("6.3", "Do you run static analysis in the build pipeline?", "Yes"),
		q("6.4", "Are third-party dependencies scanned for known vulnerabilities?", "Yes"),
		q("6.5", "Is an external penetration test performed at least annually?", "Yes"),
		q("6.6", "Are critical vulnerabilities remediated within 30 days?", "Yes"),
		q("6.7", "Are secrets kept out of source control?", "Yes"),
	)

	// 7 AI and machine learning, gated by 7.1; 7.15-7.22 gated by 7.3
	qs = append(qs,
		anchor("7.1", 2, "Does the product use artificial intelligence or machine learning?",
			"the answer decides whether the AI and machine learning section applies", yesNo, "No"),
	)
	qs = append(qs, gated("7.1",
		q("7.2", "Do you maintain an inventory of AI models used in the product?", "Yes"),
		anchor("7.3", 4, "Does the product use generative AI or large language models?",
			"the answer decides whether the generative AI sub-section applies", yesNoNA, "No"),
		q("7.4", "Is customer data used to train or fine-tune models?", "No"),
		q("7.5", "Can customers opt out of their data being used for model improvement?", "Yes"),
		q("7.6", "Are model outputs subject to human review for high-impact decisions?", "Yes"),
		q("7.7", "Do you assess models for bias and fairness?", "Yes"),
		q("7.8", "Are model versions tracked and reproducible?", "Yes"),
		q("7.9", "Is training data provenance documented?", "Yes"),
		q("7.10", "Do you monitor deployed models for drift?", "Yes"),
		q("7.11", "Is there an AI governance policy?", "Yes"),
		q("7.12", "Are AI features disclosed to end users?", "Yes"),
		q("7.13", "Are third-party AI providers covered by your vendor review?", "Yes"),
		q("7.14", "Can AI features be disabled per customer?", "Yes"),
	)...)
	qs = append(qs, gated("7.3",
		q("7.15", "Do you filter prompts and outputs for harmful content?", "Yes"),
		q("7.16", "Are prompt injection risks assessed and mitigated?", "Yes"),
		q("7.17", "Is customer data excluded from third-party model training by contract?", "Yes"),
		q("7.18", "Are generative outputs labelled as AI generated?", "Yes"),
		q("7.19", "Are prompts and completions retained for no longer than necessary?", "Yes"),
		q("7.20", "Is access to LLM provider keys restricted and rotated?", "Yes"),
		q("7.21", "Do you red-team generative features before release?", "Yes"),
		q("7.22", "Are hallucination risks communicated to users?", "Yes"),
	)...)

	// 8 Business continuity
	qs = append(qs,
		q("8.1", "Do you maintain a business continuity plan?", "Yes"),
		q("8.2", "Is the disaster recovery plan tested at least annually?", "Yes"),
		q("8.3", "Are backups encrypted and stored in a separate location?", "Yes"),
		q("8.4", "Are backup restores tested?", "Yes"),
		q("8.5", "Is the recovery time objective 24 hours or less?", "Yes"),
		q("8.6", "Do you publish service availability commitments?", "Yes"),
	)

	// 9 Payment card data, gated by 9.1
	qs = append(qs,
		anchor("9.1", 3, "Does the service store, process, or transmit payment card data?",
			"card data brings PCI DSS controls into scope",
			[]string{
				"Yes - we store, process or transmit card data",
				"Outsourced to a PCI DSS compliant processor",
				"Not applicable / No credit card data involved",
			},
			"Not applicable / No credit card data involved"),
	)
	qs = append(qs, gated("9.1",
		q("9.2", "Do you store full primary account numbers (PAN)?", "No"),
		q("9.3", "Do you hold a current PCI DSS attestation of compliance?", "Yes"),
		q("9.4", "Is the cardholder data environment segmented from other networks?", "Yes"),
		q("9.5", "Are quarterly ASV scans performed?", "Yes"),
		q("9.6", "Is access to cardholder data logged and reviewed daily?", "Yes"),
	)...)

	// 10 Incident response
	qs = append(qs,
		q("10.1", "Do you maintain a documented incident response plan?", "Yes"),
		q("10.2", "Will customers be notified of a security incident within 72 hours?", "Yes"),
		q("10.3", "Is the incident response plan exercised at least annually?", "Yes"),
		q("10.4", "Are security logs retained for at least 12 months?", "Yes"),
		q("10.5", "Do you operate 24x7 security monitoring?", "Yes"),
		q("10.6", "Are post-incident reviews documented?", "Yes"),
	)

	// 11 Subprocessors, gated by 11.1
	qs = append(qs,
		anchor("11.1", 6, "Do you use subprocessors that access customer data?",
			"subprocessors bring third-party risk management controls into scope", yesNo, "Yes"),
	)
	qs = append(qs, gated("11.1",
		q("11.2", "Do you publish a list of subprocessors?", "Yes"),
		q("11.3", "Are customers notified before new subprocessors are added?", "Yes"),
		q("11.4", "Are subprocessors bound by equivalent data protection terms?", "Yes"),
		q("11.5", "Are subprocessors assessed before onboarding?", "Yes"),
		q("11.6", "Are subprocessors reassessed at least annually?", "Yes"),
	)...)

	// 12 Physical security, gated by 12.1
	qs = append(qs,
		anchor("12.1", 8, "Do you operate your own data centre or server room holding customer data?",
			"self-operated facilities bring physical security controls into scope", yesNo, "No"),
	)
	qs = append(qs, gated("12.1",
		q("12.2", "Is physical access restricted by badge or biometric control?", "Yes"),
		q("12.3", "Are visitors escorted and logged?", "Yes"),
		q("12.4", "Is the facility monitored by CCTV?", "Yes"),
		q("12.5", "Are environmental controls (fire suppression, UPS) in place?", "Yes"),
	)...)

	// 13 Health information, gated by 13.1
	qs = append(qs,
		anchor("13.1", 5, "Does the service create, receive, or store protected health information (PHI)?",
			"PHI brings HIPAA safeguards into scope", yesNoNA, "No"),
	)
	qs = append(qs, gated("13.1",
		q("13.2", "Will you sign a business associate agreement?", "Yes"),
		q("13.3", "Is PHI access logged and auditable?", "Yes"),
		q("13.4", "Is a HIPAA risk analysis performed annually?", "Yes"),
		q("13.5", "Is PHI de-identified where possible?", "Yes"),
		q("13.6", "Are workforce members trained on HIPAA requirements?", "Yes"),
	)...)

	c, err := New("builtin-1", qs)
	if err != nil {
		panic("catalog: invalid builtin catalog: " + err.Error())
	}
	return c
}
