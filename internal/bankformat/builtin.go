package bankformat

var builtin = []Config{
	{
		ID:          "yapikredi",
		DisplayName: "Yapı Kredi",
		Columns: map[Field][]string{
			FieldDate:        {"İşlem Tarihi", "Tarih"},
			FieldDescription: {"İşlemler", "İşlem Açıklaması", "Açıklama"},
			FieldAmount:      {"Tutar", "Miktar"},
		},
		DateFormat:   "%d/%m/%Y",
		HeaderMarker: "İşlem Tarihi",
		// previous period balance rows sit between the header and the data
		SkipInitialRows: 2,
	},
	{
		ID:          "kuveytturk",
		DisplayName: "Kuveyt Türk",
		Columns: map[Field][]string{
			FieldDate:        {"Tarih", "İşlem Tarihi"},
			FieldDescription: {"Açıklama", "İşlem Açıklaması"},
			FieldAmount:      {"Tutar", "Miktar"},
		},
		HeaderMarker:     "Tarih",
		UseBoldForIncome: true,
	},
}
