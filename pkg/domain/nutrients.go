package domain

// NutrientKind names a nutrient. The set is open: profiles may carry kinds
// that are not registered below.
type NutrientKind string

// Registered nutrient kinds.
const (
	Calories      NutrientKind = "calories"
	ProteinG      NutrientKind = "protein_g"
	CarbG         NutrientKind = "carb_g"
	FatG          NutrientKind = "fat_g"
	SaturatedFat  NutrientKind = "saturated_fat_g"
	FiberG        NutrientKind = "fiber_g"
	SugarG        NutrientKind = "sugar_g"
	SodiumMg      NutrientKind = "sodium_mg"
	PotassiumMg   NutrientKind = "potassium_mg"
	CalciumMg     NutrientKind = "calcium_mg"
	IronMg        NutrientKind = "iron_mg"
	VitaminCMg    NutrientKind = "vitamin_c_mg"
	VitaminDUg    NutrientKind = "vitamin_d_ug"
	VitaminAUg    NutrientKind = "vitamin_a_ug"
	CholesterolMg NutrientKind = "cholesterol_mg"
)

// NutrientInfo describes how a nutrient is measured and displayed.
type NutrientInfo struct {
	Kind  NutrientKind
	Label string
	Unit  string
	// Precision is the natural number of decimal places for results.
	Precision int
}

var nutrientRegistry = map[NutrientKind]NutrientInfo{
	Calories:      {Calories, "Calories", "kcal", 0},
	ProteinG:      {ProteinG, "Protein", "g", 1},
	CarbG:         {CarbG, "Carbohydrate", "g", 1},
	FatG:          {FatG, "Fat", "g", 1},
	SaturatedFat:  {SaturatedFat, "Saturated fat", "g", 1},
	FiberG:        {FiberG, "Fiber", "g", 1},
	SugarG:        {SugarG, "Sugar", "g", 1},
	SodiumMg:      {SodiumMg, "Sodium", "mg", 0},
	PotassiumMg:   {PotassiumMg, "Potassium", "mg", 0},
	CalciumMg:     {CalciumMg, "Calcium", "mg", 0},
	IronMg:        {IronMg, "Iron", "mg", 1},
	VitaminCMg:    {VitaminCMg, "Vitamin C", "mg", 1},
	VitaminDUg:    {VitaminDUg, "Vitamin D", "µg", 1},
	VitaminAUg:    {VitaminAUg, "Vitamin A", "µg", 0},
	CholesterolMg: {CholesterolMg, "Cholesterol", "mg", 0},
}

// LookupNutrient returns the registry entry for kind.
func LookupNutrient(kind NutrientKind) (NutrientInfo, bool) {
	info, ok := nutrientRegistry[kind]
	return info, ok
}
