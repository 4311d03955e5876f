package domain

var lessonCatalog = map[Category][]string{
	CategoryFoundational: {
		"Anatomi",
		"Histoloji-Embriyoloji",
		"Fizyoloji",
		"Biyokimya",
		"Mikrobiyoloji",
		"Patoloji",
		"Farmakoloji",
		"Tıbbi Biyoloji ve Genetik",
	},
	CategoryClinical: {
		"Restoratif Diş Tedavisi",
		"Protetik Diş Tedavisi",
		"Ağız Diş ve Çene Cerrahisi",
		"Ağız Diş ve Çene Radyolojisi",
		"Periodontoloji",
		"Ortodonti",
		"Endodonti",
		"Çocuk Diş Hekimliği",
	},
}

// LessonsFor lists the authoring lessons of a category. Unknown categories yield nil.
func LessonsFor(c Category) []string {
	lessons := lessonCatalog[c]
	out := make([]string, len(lessons))
	copy(out, lessons)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ValidCategory reports whether c is one of the two scoring categories.
func ValidCategory(c Category) bool {
	return c == CategoryFoundational || c == CategoryClinical
}
