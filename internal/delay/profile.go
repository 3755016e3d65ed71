package delay

import (
	"sort"
	"strings"
)

// Dataset binds a label to its base duration in microseconds.
type Dataset struct {
	Label  string `mapstructure:"label" json:"label" yaml:"label"`
	Micros int64  `mapstructure:"micros" json:"micros" yaml:"micros"`
}

// Profile is one parameterisation of the calculator: a dataset table plus
// whether results are reported on stdout/stderr.
type Profile struct {
	Name     string    `mapstructure:"name" json:"name" yaml:"name"`
	Report   bool      `mapstructure:"report" json:"report" yaml:"report"`
	Datasets []Dataset `mapstructure:"datasets" json:"datasets" yaml:"datasets"`
}

// DefaultProfiles returns the three built-in variants.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name: "A",
			Datasets: []Dataset{
				{Label: "data1", Micros: 1_000_000},
				{Label: "data2", Micros: 500_000},
				{Label: "data3", Micros: 1_400_000},
			},
		},
		{
			Name:   "B",
			Report: true,
			Datasets: []Dataset{
				{Label: "data1", Micros: 1_000_000},
				{Label: "data2", Micros: 500_000},
				{Label: "data3", Micros: 1_000_000},
			},
		},
		{
			Name:   "C",
			Report: true,
			Datasets: []Dataset{
				{Label: "data1", Micros: 1_200_000},
				{Label: "data2", Micros: 520_000},
				{Label: "data3", Micros: 1_020_000},
			},
		},
	}
}

// BaseMicros resolves label to its base duration.
func (p Profile) BaseMicros(label string) (int64, error) {
	if label == "" {
		return 0, &Error{Kind: InvalidArgument, Arg: "dataset_label"}
	}
	for _, d := range p.Datasets {
		if d.Label == label {
			return d.Micros, nil
		}
	}
	return 0, &Error{Kind: UnknownDataset, Arg: "dataset_label", Value: label}
}

// Labels returns the dataset labels in table order.
func (p Profile) Labels() []string {
	labels := make([]string, 0, len(p.Datasets))
	for _, d := range p.Datasets {
		labels = append(labels, d.Label)
	}
	return labels
}

// FindProfile looks a profile up by name, ignoring case.
func FindProfile(profiles []Profile, name string) (Profile, bool) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// ProfileNames returns the sorted names of profiles.
func ProfileNames(profiles []Profile) []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
