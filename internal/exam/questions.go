package exam

// Question is one item of the fixed form. An answer earns the full weight
// when it mentions any of the keywords; there is no partial credit.
type Question struct {
	Prompt   string
	Keywords []string
	Weight   float64
}

// Questions is the deployed bank. Submissions must carry exactly one answer
// per entry, in order.
var Questions = []Question{
	{"What should you do first when you receive your income each month?", []string{"save", "pay yourself first", "set aside"}, 2},
	{"What is the difference between an asset and a liability?", []string{"asset puts money in", "income", "liability takes"}, 2},
	{"Why should an emergency fund come before investing?", []string{"unexpected", "cushion", "safety"}, 2},
	{"What does compound interest do to long-term savings?", []string{"grow", "interest on interest", "exponential"}, 2},
	{"If you want to change your life, what is the first thing to change?", []string{"mindset", "thinking", "yourself"}, 3},
	{"What is the purpose of tracking your expenses?", []string{"awareness", "know where", "control"}, 1},
	{"How does a budget differ from an expense record?", []string{"plan", "ahead", "forward"}, 1},
	{"What should grow faster over time: your income or your spending?", []string{"income"}, 1},
	{"Why is paying only the minimum on credit card debt dangerous?", []string{"interest", "compound", "snowball"}, 2},
	{"What does it mean to balance production and production capability?", []string{"balance", "maintain", "invest in yourself"}, 3},
	{"Name a kind of asset worth accumulating.", []string{"knowledge", "skill", "investment", "business", "health"}, 3},
	{"When is the best time to start investing?", []string{"now", "early", "today", "as soon as"}, 2},
}

// MaxTotal is the highest achievable score for the bank.
func MaxTotal() float64 {
	var m float64
	for _, q := range Questions {
		m += q.Weight
	}
	return m
}

// Level is one advisory band of the percent scale.
type Level struct {
	Min   float64
	Level string
	Tip   string
}

// Levels are ordered high to low and cover the whole [0,100] range.
var Levels = []Level{
	{85, "Excellent", "Strong fundamentals. Focus on growing assets and teaching others what you practice."},
	{70, "Good", "Solid base. Tighten your budget discipline and start automating your savings."},
	{50, "Fair", "You know the ideas; the habits need work. Track expenses daily for one month."},
	{0, "Needs work", "Start small: record every expense this week and set aside something on payday."},
}

// LevelFromPercent selects the band for a percent score.
func LevelFromPercent(percent float64) Level {
	for _, l := range Levels {
		if percent >= l.Min {
			return l
		}
	}
	return Levels[len(Levels)-1]
}
