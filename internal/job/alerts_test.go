package job

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BudgetAlerts", func() {
	var job *Job

	BeforeEach(func() {
		job = &Job{ID: "job-1", ProjectValue: dec("10000"), Status: StatusActive}
	})

	alertTypes := func(alerts []Alert) []string {
		types := []string{}
		for _, a := range alerts {
			types = append(types, a.Type)
		}
		return types
	}

	It("is quiet for a healthy job", func() {
		s := Summary{LaborCost: dec("3000"), Profit: dec("5000"), Margin: dec("0.5")}
		Expect(BudgetAlerts(job, s)).To(BeEmpty())
	})

	It("warns when labor nears the project value", func() {
		s := Summary{LaborCost: dec("9000"), Profit: dec("1000"), Margin: dec("0.1")}
		Expect(alertTypes(BudgetAlerts(job, s))).To(Equal([]string{"labor_near_budget"}))
	})

	It("is critical when labor exceeds the project value", func() {
		s := Summary{LaborCost: dec("12000"), Profit: dec("-2000"), Margin: dec("-0.2")}
		alerts := BudgetAlerts(job, s)
		Expect(alertTypes(alerts)).To(Equal([]string{"labor_over_budget"}))
		Expect(alerts[0].Severity).To(Equal(SeverityCritical))
	})

	It("warns on a thin but positive margin", func() {
		s := Summary{LaborCost: dec("1000"), Profit: dec("500"), Margin: dec("0.05")}
		Expect(alertTypes(BudgetAlerts(job, s))).To(Equal([]string{"low_margin"}))
	})
})

var _ = Describe("PaymentAlerts", func() {
	It("asks for payment on a finished job with a balance", func() {
		job := &Job{ProjectValue: dec("10000"), AmountPaid: dec("8000"), Status: StatusCompleted}
		alerts := PaymentAlerts(job)
		Expect(alerts).To(HaveLen(1))
		Expect(alerts[0].Type).To(Equal("payment_due"))
		Expect(alerts[0].Message).To(ContainSubstring("2000.00"))
	})

	It("suggests a progress payment on an active job", func() {
		job := &Job{ProjectValue: dec("10000"), AmountPaid: dec("1000"), Status: StatusActive}
		alerts := PaymentAlerts(job)
		Expect(alerts).To(HaveLen(1))
		Expect(alerts[0].Severity).To(Equal(SeverityInfo))
	})

	It("is quiet for a paid job", func() {
		job := &Job{ProjectValue: dec("10000"), AmountPaid: dec("10000"), Status: StatusCompleted}
		Expect(PaymentAlerts(job)).To(BeEmpty())
	})
})
