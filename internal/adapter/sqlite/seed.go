package sqlite

type seedFact struct {
	domain    string
	topic     string
	statement string
	source    string
}

// seedFacts is the normative baseline, kept in sync with the PostgreSQL
// seed migration.
var seedFacts = []seedFact{
	{"structural", "partial factors", "Permanent actions use a partial factor of 1.35 when unfavourable and 1.00 when favourable; variable actions use 1.50.", "EN 1990"},
	{"structural", "concrete cover", "Minimum durability cover for exposure class XC4 and structural class S4 is 30 mm, plus a 10 mm allowance for deviation.", "EN 1992-1-1"},
	{"structural", "deflection limits", "Quasi-permanent deflections of beams and slabs should not exceed span/250; deflections after construction of partitions should not exceed span/500.", "EN 1992-1-1"},
	{"geotechnics", "design approaches", "Geotechnical design uses one of three design approaches combining partial factors on actions, soil parameters and resistances; the national annex fixes the approach.", "EN 1997-1"},
	{"geotechnics", "ground investigation", "Spacing of investigation points for high-rise and industrial structures should be in the range of 15 m to 40 m on a grid pattern.", "EN 1997-2"},
	{"material", "exposure class XC2", "Concrete in exposure class XC2 requires at least strength class C25/30, a maximum water-cement ratio of 0.60 and a minimum cement content of 280 kg/m3.", "EN 206"},
	{"material", "exposure class XC4", "Concrete in exposure class XC4 requires at least strength class C30/37, a maximum water-cement ratio of 0.50 and a minimum cement content of 300 kg/m3.", "EN 206"},
	{"material", "freeze-thaw resistance", "Exposure classes XF2 and XF4 require an entrained air content of at least 4.0 percent for aggregate sizes of 32 mm.", "EN 206"},
	{"building_physics", "thermal resistance", "The thermal resistance of a building component is the sum of the layer resistances plus internal and external surface resistances of 0.13 and 0.04 m2K/W for walls.", "EN ISO 6946"},
	{"building_physics", "interstitial condensation", "Moisture accumulation in a component is assessed month by month with the Glaser method; accumulated condensate must dry out completely over the year.", "EN ISO 13788"},
	{"building_physics", "minimum insulation", "Opaque external components of heated rooms must achieve a minimum thermal resistance of 1.2 m2K/W to avoid mould growth at thermal bridges.", "DIN 4108-2"},
	{"fire_safety", "reaction to fire", "Construction products are classified A1, A2, B, C, D, E or F for reaction to fire, with additional classes for smoke production and flaming droplets.", "EN 13501-1"},
	{"fire_safety", "tabulated fire design", "A 240 mm reinforced concrete column with an axis distance of 40 mm achieves R 90 under the tabulated data method at a load utilisation of 0.5.", "EN 1992-1-2"},
	{"cost", "cost groups", "Construction costs are structured into cost groups; KG 300 covers the building construction, KG 400 the technical building services.", "DIN 276"},
	{"cost", "estimation stages", "Cost planning proceeds through Kostenrahmen, Kostenschaetzung, Kostenberechnung, Kostenanschlag and Kostenfeststellung, each with increasing accuracy.", "DIN 276"},
	{"cost", "quantity rules", "Quantities for earthworks and structural works are measured according to the general technical contract conditions in part C.", "VOB/C"},
}
