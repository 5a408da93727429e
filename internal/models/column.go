package models

// Column groups tasks sharing a status. It is derived, never stored.
type Column struct {
	Status Status
	Title  string
	Tasks  []Task
}

var columnTitles = map[Status]string{
	StatusTodo:       "To Do",
	StatusInProgress: "In Progress",
	StatusDone:       "Done",
}

// GroupByStatus partitions tasks into one column per status, in
// board order. Tasks keep their relative order inside a column.
// Every column is present even when it holds no tasks.
func GroupByStatus(tasks []Task) []Column {
	columns := make([]Column, len(Statuses))
	index := make(map[Status]int, len(Statuses))
	for i, status := range Statuses {
		columns[i] = Column{
			Status: status,
			Title:  columnTitles[status],
			Tasks:  []Task{},
		}
		index[status] = i
	}

	for _, task := range tasks {
		i, ok := index[task.Status]
		if !ok {
			// Unknown statuses never reach the store; park them in the
			// first column rather than losing them.
			i = 0
		}
		columns[i].Tasks = append(columns[i].Tasks, task)
	}
	return columns
}
