package automation

import "testing"

func TestKeywordClassifier_Classify(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		text string
		want Intent
	}{
		{"Rappel trafic vers le travail", Intent{Traffic: true}},
		{"TRAFIC: A86 chargée", Intent{Traffic: true}},
		{"Les actualités sur l'économie", Intent{News: true, NewsQuery: "l'économie"}},
		{"Actualites concernant la Bourse de Paris.", Intent{News: true, NewsQuery: "la Bourse de Paris"}},
		{"Les news à propos de la tech !", Intent{News: true, NewsQuery: "la tech"}},
		{"Les infos du matin", Intent{News: true}},
		{"Départ au travail dans 10 minutes", Intent{Commute: true}},
		{"Leaving for work, check the traffic", Intent{Traffic: true, Commute: true}},
		{"Je t'assure que tout va bien", Intent{}},
		{"Bonjour", Intent{}},
		{"", Intent{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := c.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestContainsAny_WordBoundary(t *testing.T) {
	tests := []struct {
		s    string
		kw   string
		want bool
	}{
		{"trafic", "trafic", true},
		{"le trafic", "trafic", true},
		{"(trafic)", "trafic", true},
		{"supertrafic", "trafic", false},
		{"assure", "sur", false},
		{"éactus", "actus", false},
		{"actus actus", "actus", true},
	}

	for _, tt := range tests {
		if got := containsAny(tt.s, []string{tt.kw}); got != tt.want {
			t.Errorf("containsAny(%q, %q) = %v, want %v", tt.s, tt.kw, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Actualités":  "actualites",
		"ÉCONOMIE":    "economie",
		"Itinéraire":  "itineraire",
		"déjà-vu":     "deja-vu",
		"plain ascii": "plain ascii",
	}
	for in, want := range tests {
		if got := fold(in); got != want {
			t.Errorf("fold(%q) = %q, want %q", in, got, want)
		}
	}
}
