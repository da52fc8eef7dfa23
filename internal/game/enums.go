package game

// String backed enums for wire and DB interoperability.

type Gender string
type BuildType string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var AllGenders = []Gender{GenderMale, GenderFemale}

const (
	BuildWarrior BuildType = "warrior"
	BuildMage    BuildType = "mage"
	BuildRogue   BuildType = "rogue"
	BuildRanger  BuildType = "ranger"
)

var AllBuildTypes = []BuildType{BuildWarrior, BuildMage, BuildRogue, BuildRanger}

func contains[T ~string](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (g Gender) Validate() bool    { return contains(AllGenders, g) }
func (b BuildType) Validate() bool { return contains(AllBuildTypes, b) }

func ListBuildTypes() []BuildType { return append([]BuildType{}, AllBuildTypes...) }
