package catalog

import "github.com/bmwdex/bmwdex/engine/domain"

func sampleCar() domain.CarPayload {
	return domain.CarPayload{
		Make:      "BMW",
		Model:     "3 Series",
		ModelYear: "1975-present",
		Summary:   "Compact executive car.",
		Data: domain.CarData{Models: []domain.GenerationModel{
			{
				Model:     "E90/E91/E92/E93",
				ModelYear: "2005–2013",
				ImagePath: `{"image_link":"//img.example/e90.jpg"}`,
				EngineDetails: []domain.EngineDetail{
					{Model: "325i", Years: "2005-2006", Engine: "N52B25 2.5 L I6", Power: "160 kW"},
					{Model: "335i", Years: "2006-2010", Engine: "N54B30 3.0 L I6 twin turbo", Power: "225 kW"},
					{Model: "320d", Years: "2005-2007", Engine: "2.0 L diesel"},
				},
			},
			{
				Model: "Touring",
				EngineDetails: []domain.EngineDetail{
					{Model: "330i", Engine: "B48B20O1"},
				},
			},
		}},
	}
}

func sampleEngine() domain.EnginePayload {
	return domain.EnginePayload{
		Model:     "BMW B58",
		FuelType:  "Petrol",
		ImagePath: "//img.example/b58.jpg",
		Notes:     "Successor to the N55.",
		Data: []domain.RawEngineData{
			{EngineCode: "B58B30M0", Displacement: "2998 cc", Power: "240 kW", Torque: "450 Nm", Years: "2015-2018"},
			{EngineCode: "  ", Power: "ignored"},
			{EngineCode: "B58B30O0", Displacement: "2998 cc", Power: "265 kW", Torque: "500 Nm", Years: "2016-present"},
			{EngineCode: "B58B30M0", Displacement: "2998 cc", Power: "240 kW", Torque: "450 Nm", Years: "2015-2018"},
			{EngineCode: "B58B30M0 ", Displacement: "2998 cc", Power: "250 kW", Torque: "500 Nm", Years: "2018–2022"},
		},
	}
}
