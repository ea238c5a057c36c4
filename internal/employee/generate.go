package employee

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Synthetic data pools for the seed generator. All values are fabricated.
var (
	firstNames = []string{
		"Jane", "John", "Alice", "Bob", "Carol", "David", "Emma", "Frank",
		"Grace", "Henry", "Ines", "Jonas", "Klara", "Liam", "Mia", "Noah",
		"Olivia", "Paul", "Quinn", "Rosa", "Sven", "Tara", "Umar", "Vera",
		"Wendy", "Yusuf", "Zoe", "Aaron", "Bianca", "Carlos",
	}
	lastNames = []string{
		"Doe", "Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Martinez", "Lopez", "Wilson", "Anderson",
		"Thomas", "Taylor", "Moore", "Jackson", "Martin", "Lee", "Walker",
		"Hall", "Young", "King", "Wright", "Scott", "Green", "Baker",
	}
	departments = []string{
		"R&D", "Engineering", "Sales", "Marketing", "Human Resources",
		"Finance", "Customer Support", "Operations", "Legal",
	}
	jobTitles = []string{
		"Engineer", "Senior Engineer", "Staff Engineer", "Product Manager",
		"Designer", "Data Analyst", "Account Executive", "Recruiter",
		"Accountant", "Support Specialist", "Team Lead", "Director",
	}
	skillPool = []string{
		"Go", "Python", "SQL", "Kubernetes", "PostgreSQL", "Communication",
		"Project Management", "Data Analysis", "Machine Learning", "React",
		"Negotiation", "Public Speaking", "Recruiting", "Budgeting",
		"Customer Service", "Technical Writing",
	}
	officeLocations = []string{
		"Berlin", "Munich", "Hamburg", "London", "Amsterdam", "New York",
		"San Francisco", "Singapore",
	}
	reviewComments = []string{
		"Consistently exceeds expectations.",
		"Solid work, reliable delivery.",
		"Great team player, strong communication.",
		"Needs improvement on meeting deadlines.",
		"Excellent technical depth.",
		"Shows strong leadership potential.",
		"Good progress since last review.",
	}
	// Entries carry no trailing period; Summary adds its own.
	notesPool = []string{
		"",
		"Mentors two junior colleagues",
		"Interested in internal transfer to platform team",
		"Speaks three languages",
		"Organizes the monthly tech talks",
		"On parental leave Q3",
	}
)

// Generate produces n deterministic synthetic employee records.
// The same (n, seed) pair always yields the same records, so re-seeding a
// store is idempotent under Upsert.
func Generate(n int, seed int64) []Record {
	rng := rand.New(rand.NewSource(seed))
	records := make([]Record, 0, n)

	for i := range n {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]

		dob := time.Date(1965+rng.Intn(36), time.Month(1+rng.Intn(12)), 1+rng.Intn(28),
			0, 0, 0, 0, time.UTC)

		skills := pickDistinct(rng, skillPool, 2+rng.Intn(4))

		reviews := make([]Review, rng.Intn(4))
		for j := range reviews {
			reviews[j] = Review{
				Date: time.Date(2020+j, time.Month(1+rng.Intn(12)), 1+rng.Intn(28),
					0, 0, 0, 0, time.UTC),
				Rating:   1 + rng.Intn(5),
				Comments: reviewComments[rng.Intn(len(reviewComments))],
			}
		}

		records = append(records, Record{
			EmployeeID:  fmt.Sprintf("EMP-%04d", i+1),
			FirstName:   first,
			LastName:    last,
			DateOfBirth: dob,
			Email: fmt.Sprintf("%s.%s%d@example.com",
				strings.ToLower(first), strings.ToLower(last), i+1),
			Phone:          fmt.Sprintf("+49 30 %07d", rng.Intn(10000000)),
			JobTitle:       jobTitles[rng.Intn(len(jobTitles))],
			Department:     departments[rng.Intn(len(departments))],
			Salary:         45000 + rng.Intn(116)*1000,
			Skills:         skills,
			Reviews:        reviews,
			OfficeLocation: officeLocations[rng.Intn(len(officeLocations))],
			Remote:         rng.Intn(4) == 0,
			Notes:          notesPool[rng.Intn(len(notesPool))],
		})
	}

	return records
}

// pickDistinct selects k distinct values from pool in rng order.
func pickDistinct(rng *rand.Rand, pool []string, k int) []string {
	if k > len(pool) {
		k = len(pool)
	}
	perm := rng.Perm(len(pool))
	out := make([]string, k)
	for i := range k {
		out[i] = pool[perm[i]]
	}
	return out
}
