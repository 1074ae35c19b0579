package chat

import "testing"

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		message string
		want    Intent
	}{
		{"hi", IntentGreeting},
		{"Hello!", IntentGreeting},
		{"good morning", IntentGreeting},
		{"thanks", IntentGreeting},
		{"   ", IntentGreeting},
		{"what do you think?", IntentConversational},
		{"can you explain more", IntentConversational},
		{"How do I improve my SEO?", IntentSubstantive},
		{"Walk me through the roadmap", IntentSubstantive},
		{"Why is my conversion rate so low compared to last year?", IntentSubstantive},
		{
			"I have been wondering for a while now whether the thing you mentioned " +
				"earlier in our discussion applies to my situation or whether it is different somehow",
			IntentSubstantive,
		},
	}
	for _, tc := range cases {
		if got := ClassifyIntent(tc.message); got != tc.want {
			t.Fatalf("ClassifyIntent(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}
